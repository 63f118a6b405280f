package sim

// ErrorKind classifies why a command was rejected. Validation failures are
// returned to the caller as typed results and never mutate state; nothing in
// the pipeline throws or crosses the network boundary as an exception.
type ErrorKind int

const (
	ErrNone ErrorKind = iota

	// Validation errors.
	ErrNotPlacementPhase
	ErrNotBattlePhase
	ErrUnauthorized
	ErrInsufficientGold
	ErrInsufficientSupply
	ErrCellsOutOfBounds
	ErrCellsOccupied
	ErrWrongSide
	ErrUnknownUnitType
	ErrUnknownUpgrade
	ErrUpgradeOwned

	// Stale references, typically a race between disconnect or destruction
	// and an in-flight command.
	ErrPlayerNotFound
	ErrPlacementNotFound

	// Internal apply failure after validation passed; the operation was
	// rolled back.
	ErrApplyFailed
)

var errorMessages = map[ErrorKind]string{
	ErrNone:               "",
	ErrNotPlacementPhase:  "Not in placement phase",
	ErrNotBattlePhase:     "Not in battle phase",
	ErrUnauthorized:       "Not your placement",
	ErrInsufficientGold:   "Not enough gold",
	ErrInsufficientSupply: "Not enough supply",
	ErrCellsOutOfBounds:   "Cells outside the board",
	ErrCellsOccupied:      "Cells already occupied",
	ErrWrongSide:          "Cells on opponent side",
	ErrUnknownUnitType:    "Unknown unit type",
	ErrUnknownUpgrade:     "Unknown upgrade",
	ErrUpgradeOwned:       "Upgrade already owned",
	ErrPlayerNotFound:     "Player not found",
	ErrPlacementNotFound:  "Placement not found",
	ErrApplyFailed:        "Internal error applying command",
}

// Message returns the wire-facing error string, empty for ErrNone.
func (e ErrorKind) Message() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return "Unknown error"
}

// OK reports whether the kind represents success.
func (e ErrorKind) OK() bool { return e == ErrNone }

// IsNotFound reports whether the kind indicates a stale reference.
func (e ErrorKind) IsNotFound() bool {
	return e == ErrPlayerNotFound || e == ErrPlacementNotFound
}
