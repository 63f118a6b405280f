package sim

// Cell addresses one board square. The north team owns rows [0, rows/2),
// the south team rows [rows/2, rows).
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Grid tracks cell reservations for placements. Purely positional; entity
// data lives in the component store.
type Grid struct {
	cols     int
	rows     int
	cellSize float64
	occupied map[Cell]string
}

// NewGrid builds an empty grid.
func NewGrid(cols, rows int, cellSize float64) *Grid {
	return &Grid{
		cols:     cols,
		rows:     rows,
		cellSize: cellSize,
		occupied: make(map[Cell]string, cols*rows/4),
	}
}

// Cols returns the board width in cells.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the board depth in cells.
func (g *Grid) Rows() int { return g.rows }

// InBounds reports whether the cell lies on the board.
func (g *Grid) InBounds(cell Cell) bool {
	return cell.Col >= 0 && cell.Col < g.cols && cell.Row >= 0 && cell.Row < g.rows
}

// SideOf reports which team owns the cell's row.
func (g *Grid) SideOf(cell Cell) TeamID {
	if cell.Row < g.rows/2 {
		return TeamNorth
	}
	return TeamSouth
}

// Occupant returns the placement id reserving the cell, if any.
func (g *Grid) Occupant(cell Cell) (string, bool) {
	id, ok := g.occupied[cell]
	return id, ok
}

// Free reports whether every listed cell is unreserved.
func (g *Grid) Free(cells []Cell) bool {
	for _, cell := range cells {
		if _, taken := g.occupied[cell]; taken {
			return false
		}
	}
	return true
}

// Reserve marks the cells as held by the placement. Callers validate bounds
// and occupancy first; Reserve refuses partially rather than overwriting.
func (g *Grid) Reserve(cells []Cell, placementID string) bool {
	if !g.Free(cells) {
		return false
	}
	for _, cell := range cells {
		g.occupied[cell] = placementID
	}
	return true
}

// Release frees every cell held by the placement among the listed cells.
func (g *Grid) Release(cells []Cell, placementID string) {
	for _, cell := range cells {
		if g.occupied[cell] == placementID {
			delete(g.occupied, cell)
		}
	}
}

// CellsFor expands a placement footprint from its origin cell. Row growth
// runs toward the board center so both sides describe footprints the same
// way.
func (g *Grid) CellsFor(origin Cell, wide, deep int, side TeamID) []Cell {
	cells := make([]Cell, 0, wide*deep)
	rowStep := 1
	if side == TeamSouth {
		rowStep = -1
	}
	for d := 0; d < deep; d++ {
		for w := 0; w < wide; w++ {
			cells = append(cells, Cell{Col: origin.Col + w, Row: origin.Row + d*rowStep})
		}
	}
	return cells
}

// CenterOf converts a footprint to its world-space center on the ground
// plane.
func (g *Grid) CenterOf(cells []Cell) Vec3 {
	if len(cells) == 0 {
		return Vec3{}
	}
	var sumX, sumZ float64
	for _, cell := range cells {
		sumX += (float64(cell.Col) + 0.5) * g.cellSize
		sumZ += (float64(cell.Row) + 0.5) * g.cellSize
	}
	n := float64(len(cells))
	return Vec3{X: sumX / n, Z: sumZ / n}
}

// CellCenter converts one cell to its world-space center.
func (g *Grid) CellCenter(cell Cell) Vec3 {
	return Vec3{
		X: (float64(cell.Col) + 0.5) * g.cellSize,
		Z: (float64(cell.Row) + 0.5) * g.cellSize,
	}
}
