package sim

import (
	"strconv"

	"redoubt/server/internal/ecs"
)

// formatEntityID renders an entity id for wire payloads and hash samples.
// The generation is part of the string so a recycled slot never aliases a
// dead unit on the client.
func formatEntityID(id ecs.EntityID) string {
	return "u" + strconv.FormatUint(uint64(id), 16)
}

// ParseEntityID reverses formatEntityID.
func ParseEntityID(wire string) (ecs.EntityID, bool) {
	if len(wire) < 2 || wire[0] != 'u' {
		return ecs.Zero, false
	}
	raw, err := strconv.ParseUint(wire[1:], 16, 64)
	if err != nil {
		return ecs.Zero, false
	}
	return ecs.EntityID(raw), true
}

// nextPlacementID mints the id for a new placement. Ids are minted from a
// counter that advances only on successful placements, so a mirror core
// applying the same command stream mints identical ids and prediction can
// reference a placement before the server confirms it.
func (c *Core) mintPlacementID() string {
	c.placementSeq++
	return "p" + strconv.FormatUint(c.placementSeq, 10)
}
