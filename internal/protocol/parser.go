// Package protocol implements the line-oriented text protocol spoken by the
// LED-matrix board: parsing of inbound event lines and construction of
// outbound command lines.
package protocol

import (
	"strconv"
	"strings"
)

// Kind classifies a parsed inbound line.
type Kind int

const (
	// KindReady is the board's "READY" handshake line.
	KindReady Kind = iota
	// KindAllOff is the "ALL_LEDS_OFF" housekeeping line.
	KindAllOff
	// KindEvent is a named game event, possibly with comma-separated fields.
	KindEvent
)

const (
	lineReady  = "READY"
	lineAllOff = "ALL_LEDS_OFF"

	eventPrefix = "GAME_EVENT"
)

// Message is one parsed inbound line. Produced once per received line and
// then read-only.
type Message struct {
	Kind   Kind
	Name   string   // event name, dispatch key for KindEvent
	Fields []string // ordered raw fields; numeric access via Int
	Raw    string   // the original line, terminator already trimmed
}

// Parse turns a raw received line into a Message. It is total: every input,
// however malformed, yields a Message and never an error. The historical
// protocol allowed bare event names with no GAME_EVENT prefix, so any
// unrecognized line still dispatches as an event rather than being rejected.
func Parse(line string) Message {
	switch line {
	case lineReady:
		return Message{Kind: KindReady, Raw: line}
	case lineAllOff:
		return Message{Kind: KindAllOff, Raw: line}
	}

	if rest, ok := strings.CutPrefix(line, eventPrefix+":"); ok {
		name, value, hasValue := strings.Cut(rest, ":")
		msg := Message{Kind: KindEvent, Name: name, Raw: line}
		if hasValue && value != "" {
			msg.Fields = strings.Split(value, ",")
		}
		return msg
	}

	// Legacy form: "NAME:v1,v2" or a bare "NAME".
	name, value, hasValue := strings.Cut(line, ":")
	msg := Message{Kind: KindEvent, Name: name, Raw: line}
	if hasValue && value != "" {
		msg.Fields = strings.Split(value, ",")
	}
	return msg
}

// Int returns field i as an integer. ok is false when the field is absent or
// not numeric; callers skip the field's numeric effect in that case instead
// of treating it as an error.
func (m Message) Int(i int) (int, bool) {
	if i < 0 || i >= len(m.Fields) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(m.Fields[i]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Field returns field i as a raw string, or "" when absent.
func (m Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}
