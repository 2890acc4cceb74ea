package model

// TerrainType classifies a coarse grid zone for building placement.
type TerrainType byte

const (
	Land   TerrainType = 0 // buildable ground
	Water  TerrainType = 1
	Cliff  TerrainType = 2 // rock, trees, walls
	Bridge TerrainType = 3 // passable, never buildable
)

// Buildable reports whether a building may stand on this terrain.
func (t TerrainType) Buildable() bool { return t == Land }

// TerrainGrid is the coarse grid the mod sends with hello. Each zone
// covers CellW x CellH map cells and stores a single TerrainType.
type TerrainGrid struct {
	Cols  int
	Rows  int
	CellW int
	CellH int
	Grid  []TerrainType // row-major: Grid[row*Cols + col]
}

// NewTerrainGrid converts wire values, treating anything unknown as Cliff.
// A grid whose size does not match cols x rows is rejected.
func NewTerrainGrid(cols, rows, cellW, cellH int, values []int) (*TerrainGrid, bool) {
	if cols <= 0 || rows <= 0 || len(values) != cols*rows {
		return nil, false
	}
	g := &TerrainGrid{Cols: cols, Rows: rows, CellW: cellW, CellH: cellH, Grid: make([]TerrainType, len(values))}
	for i, v := range values {
		switch t := TerrainType(v); t {
		case Land, Water, Cliff, Bridge:
			g.Grid[i] = t
		default:
			g.Grid[i] = Cliff
		}
	}
	return g, true
}

// At returns the terrain type at grid coordinates (col, row).
// Returns Land for out-of-bounds coordinates.
func (g *TerrainGrid) At(col, row int) TerrainType {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return Land
	}
	return g.Grid[row*g.Cols+col]
}

// AtPoint converts map coordinates to grid coordinates and returns the
// terrain there. Returns Land for zero-sized cells.
func (g *TerrainGrid) AtPoint(p Point) TerrainType {
	if g.CellW <= 0 || g.CellH <= 0 {
		return Land
	}
	return g.At(p.X/g.CellW, p.Y/g.CellH)
}

// Buildable reports whether p lies on buildable ground. A nil grid
// allows everything.
func (g *TerrainGrid) Buildable(p Point) bool {
	if g == nil {
		return true
	}
	return g.AtPoint(p).Buildable()
}
