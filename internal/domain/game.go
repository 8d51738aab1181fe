// Package domain contains core domain types for the LED arcade server.
package domain

// GameMode identifies one of the board's minigames. The integer value is the
// mode id sent to the board in START_GAME commands.
type GameMode int

const (
	ModeMenu GameMode = iota
	ModeMeteor
	ModePiano
	ModeRoleta
	ModeLightning
	ModeSniper
	ModeGatoRato
	ModeTarget
)

var modeNames = map[GameMode]string{
	ModeMenu:      "menu",
	ModeMeteor:    "meteor",
	ModePiano:     "piano",
	ModeRoleta:    "roleta",
	ModeLightning: "lightning",
	ModeSniper:    "sniper",
	ModeGatoRato:  "gato_rato",
	ModeTarget:    "target",
}

// String returns the stable lowercase name used in persistence and reports.
func (m GameMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether m is a known game mode (menu included).
func (m GameMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// MaxErrorsFor returns the error budget a session gets for a game mode.
// Every game currently grants the same budget; the table exists so the rule
// can diverge per game without touching session logic.
func MaxErrorsFor(m GameMode) int {
	if budget, ok := errorBudgets[m]; ok {
		return budget
	}
	return defaultErrorBudget
}

const defaultErrorBudget = 3

var errorBudgets = map[GameMode]int{
	ModeMeteor:    3,
	ModePiano:     3,
	ModeRoleta:    3,
	ModeLightning: 3,
	ModeSniper:    3,
	ModeGatoRato:  3,
	ModeTarget:    3,
}
