package connectivity

import "github.com/loomward/tilegen/pkg/model"

// Mode selects the grid's adjacency geometry.
type Mode int

const (
	Four Mode = iota
	Eight
	Hex
)

func (m Mode) String() string {
	switch m {
	case Four:
		return "four"
	case Eight:
		return "eight"
	case Hex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseMode parses the CLI/config spelling of a connectivity mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "four", "4":
		return Four, true
	case "eight", "8":
		return Eight, true
	case "hex":
		return Hex, true
	default:
		return 0, false
	}
}

// Direction is one of the (up to) eight adjacency directions a connectivity
// table can track. Not every direction is meaningful for every Mode; use
// Directions(mode) to get the supported set.
type Direction int

const (
	Top Direction = iota
	Bottom
	Left
	Right
	TopLeft
	TopRight
	BottomLeft
	BottomRight
	directionCount
)

func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// Opposite returns the direction that undoes d — the direction B sees A in,
// given A sees B in d. Training populates both sides of a pair through this
// relationship (see ConnectivityTable.Observe).
func (d Direction) Opposite() Direction {
	switch d {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	case Right:
		return Left
	case TopLeft:
		return BottomRight
	case TopRight:
		return BottomLeft
	case BottomLeft:
		return TopRight
	case BottomRight:
		return TopLeft
	default:
		return d
	}
}

// fourDirections and eightDirections are the direction sets for Four and
// Eight connectivity modes, independent of any row-parity concerns.
var (
	fourDirections  = []Direction{Top, Bottom, Left, Right}
	eightDirections = []Direction{Top, Bottom, Left, Right, TopLeft, TopRight, BottomLeft, BottomRight}
	hexDirections   = []Direction{Left, Right, TopLeft, TopRight, BottomLeft, BottomRight}
	// BorderDirections are the four directions a rectangular Region's edges
	// can be enforced on, regardless of connectivity Mode.
	BorderDirections = []Direction{Top, Bottom, Left, Right}
)

// Directions returns the direction set supported by mode.
func Directions(mode Mode) []Direction {
	switch mode {
	case Four:
		return fourDirections
	case Eight:
		return eightDirections
	case Hex:
		return hexDirections
	default:
		return nil
	}
}

// isEvenRow classifies row y as even/odd relative to startY, per §4.3: rows
// are classified even/odd by |y - startY| mod 2.
func isEvenRow(y, startY int) bool {
	d := y - startY
	if d < 0 {
		d = -d
	}
	return d%2 == 0
}

// Offset returns the (dx, dy) neighbor offset for direction d at row y
// (only relevant for Hex diagonals, where it depends on row parity against
// startY). For Four/Eight modes startY is ignored.
func Offset(mode Mode, d Direction, y, startY int) (int, int) {
	switch d {
	case Top:
		return 0, 1
	case Bottom:
		return 0, -1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	if mode != Hex {
		// Eight-connectivity diagonals: fixed, no row-parity dependence.
		switch d {
		case TopLeft:
			return -1, 1
		case TopRight:
			return 1, 1
		case BottomLeft:
			return -1, -1
		case BottomRight:
			return 1, -1
		}
		return 0, 0
	}
	// Hex diagonals: parity-dependent per §4.3.
	even := isEvenRow(y, startY)
	switch d {
	case BottomRight:
		if even {
			return 0, -1
		}
		return 1, -1
	case BottomLeft:
		if even {
			return -1, -1
		}
		return 0, -1
	case TopRight:
		if even {
			return 0, 1
		}
		return 1, 1
	case TopLeft:
		if even {
			return -1, 1
		}
		return 0, 1
	}
	return 0, 0
}

// Neighbor returns the absolute neighbor point of p in direction d, given
// mode's geometry and the hex row-parity origin startY.
func Neighbor(mode Mode, p model.Point, d Direction, startY int) model.Point {
	dx, dy := Offset(mode, d, p.Y, startY)
	return model.Point{X: p.X + dx, Y: p.Y + dy}
}

// BorderDirectionFor maps d, taken at row y of a region height rows tall,
// onto the canonical Top/Bottom/Left/Right border direction that an
// off-grid neighbor in that direction represents, or reports false if d
// carries no border meaning at this row. Four/Eight's cardinal directions
// map onto themselves directly. Hex has no literal Top/Bottom direction —
// vertical adjacency is carried entirely by the four diagonals — so a
// BottomLeft/BottomRight neighbor only means the bottom border when y is
// already the region's bottom row (0), and a TopLeft/TopRight neighbor only
// means the top border at the region's top row (height-1); off the other
// rows those diagonals go off-grid purely sideways and carry no border
// meaning, per the hex-diagonal border note in §9.
func BorderDirectionFor(mode Mode, d Direction, y, height int) (Direction, bool) {
	switch d {
	case Top, Bottom, Left, Right:
		return d, true
	}
	if mode != Hex {
		return 0, false
	}
	switch d {
	case BottomLeft, BottomRight:
		if y == 0 {
			return Bottom, true
		}
	case TopLeft, TopRight:
		if y == height-1 {
			return Top, true
		}
	}
	return 0, false
}
