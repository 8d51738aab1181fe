package game

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestZeroValuesSurviveMarshal(t *testing.T) {
	// Index 0, score 0, zero remaining chances and a lost connection are
	// all real payloads; collaborators must see them on the wire.
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{"score reset to zero", Notification{Type: NotifScore, Score: 0}, `"score":0`},
		{"first led index", Notification{Type: NotifLEDOn, LED: 0}, `"led":0`},
		{"last chance spent", Notification{Type: NotifRemaining, Remaining: 0}, `"remaining":0`},
		{"board lost", Notification{Type: NotifConnection, Connected: false}, `"connected":false`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.n)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if !strings.Contains(string(b), tt.want) {
				t.Errorf("marshaled %s, missing %s", b, tt.want)
			}
		})
	}
}
