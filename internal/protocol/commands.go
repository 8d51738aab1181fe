package protocol

import (
	"fmt"
)

// Direction is a MOVE command argument.
type Direction string

const (
	DirUp    Direction = "UP"
	DirDown  Direction = "DOWN"
	DirLeft  Direction = "LEFT"
	DirRight Direction = "RIGHT"
)

// Action is an ACTION command argument.
type Action string

const (
	ActionConfirm Action = "CONFIRM"
	ActionCancel  Action = "CANCEL"
)

// Outbound command lines. The transport owns the line terminator; these
// return the bare command text.
const (
	CmdInit        = "INIT"
	CmdStopGame    = "STOP_GAME"
	CmdDisconnect  = "DISCONNECT"
	CmdStopEffects = "STOP_EFFECTS"
	CmdResetScore  = "RESET_SCORE"
	CmdGetStatus   = "GET_STATUS"
)

// StartGame builds the command that starts a game by its integer mode id.
func StartGame(mode int) string {
	return fmt.Sprintf("START_GAME:%d", mode)
}

// KeyPress builds the key-down command for a button index.
func KeyPress(idx int) string {
	return fmt.Sprintf("KEY_PRESS:%d", idx)
}

// KeyRelease builds the key-up command for a button index.
func KeyRelease(idx int) string {
	return fmt.Sprintf("KEY_RELEASE:%d", idx)
}

// Move builds a directional movement command.
func Move(dir Direction) string {
	return fmt.Sprintf("MOVE:%s", dir)
}

// Act builds a confirm/cancel command.
func Act(a Action) string {
	return fmt.Sprintf("ACTION:%s", a)
}

// Effect builds a visual-effect trigger command.
func Effect(name string) string {
	return fmt.Sprintf("EFFECT_%s", name)
}
