package game

// NotificationType tags an outward notification for collaborators.
type NotificationType string

const (
	// NotifLEDOn asks the UI to highlight an LED index.
	NotifLEDOn NotificationType = "led_on"
	// NotifLEDOff clears an LED highlight.
	NotifLEDOff NotificationType = "led_off"
	// NotifStatus carries a human-readable status line.
	NotifStatus NotificationType = "status"
	// NotifAudio requests an audio cue by name.
	NotifAudio NotificationType = "audio"
	// NotifEffect requests a visual effect by name.
	NotifEffect NotificationType = "effect"
	// NotifScore reports the authoritative score and display-only points earned.
	NotifScore NotificationType = "score"
	// NotifRemaining reports the client's remaining chances after a loss.
	NotifRemaining NotificationType = "remaining"
	// NotifSessionEnded is the single end-of-session signal for a client.
	NotifSessionEnded NotificationType = "session_ended"
	// NotifConnection reports board connectivity changes.
	NotifConnection NotificationType = "connection"
)

// Notification is one fire-and-forget message to UI collaborators. Only the
// fields relevant to the type are set. Zero is a legitimate value for the
// LED index, the score, the remaining chances, and the connected flag, so
// those fields always serialize.
type Notification struct {
	Type      NotificationType `json:"type"`
	LED       int              `json:"led"`
	Text      string           `json:"text,omitempty"`
	Cue       string           `json:"cue,omitempty"`
	Effect    string           `json:"effect,omitempty"`
	Score     int              `json:"score"`
	Earned    int              `json:"earned,omitempty"`
	Level     int              `json:"level,omitempty"`
	Remaining int              `json:"remaining"`
	ClientID  string           `json:"client_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Connected bool             `json:"connected"`
}

// Notifier receives dispatcher notifications. Implementations must not
// block; the dispatcher never waits on delivery.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Notification) {}
