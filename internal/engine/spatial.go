package engine

import (
	"math"
	"sort"

	"github.com/civforge/civsim/internal/domain/civ"
)

// gridIndex is a bucket-grid spatial index. Neighbor queries cost O(k) in the
// number of candidates in the surrounding buckets instead of O(n) over the
// whole population, which keeps per-tick pairing sub-quadratic.
type gridIndex struct {
	cellSize  float64
	cells     map[[2]int][]string
	positions map[string]civ.Position
}

func newGridIndex(cellSize float64) *gridIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &gridIndex{
		cellSize:  cellSize,
		cells:     make(map[[2]int][]string),
		positions: make(map[string]civ.Position),
	}
}

func (g *gridIndex) cellOf(p civ.Position) [2]int {
	return [2]int{int(math.Floor(p.X / g.cellSize)), int(math.Floor(p.Y / g.cellSize))}
}

func (g *gridIndex) insert(id string, p civ.Position) {
	key := g.cellOf(p)
	g.cells[key] = append(g.cells[key], id)
	g.positions[id] = p
}

func (g *gridIndex) remove(id string) {
	p, ok := g.positions[id]
	if !ok {
		return
	}
	key := g.cellOf(p)
	bucket := g.cells[key]
	for i, other := range bucket {
		if other == id {
			g.cells[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(g.cells[key]) == 0 {
		delete(g.cells, key)
	}
	delete(g.positions, id)
}

// within returns the ids of indexed entries within radius of p, excluding
// the given id. Results are sorted so queries are deterministic regardless
// of insertion and bucket iteration order.
func (g *gridIndex) within(id string, p civ.Position, radius float64) []string {
	if radius <= 0 {
		return nil
	}
	r2 := radius * radius
	span := int(math.Ceil(radius / g.cellSize))
	center := g.cellOf(p)

	var found []string
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			key := [2]int{center[0] + dx, center[1] + dy}
			for _, other := range g.cells[key] {
				if other == id {
					continue
				}
				op := g.positions[other]
				ddx, ddy := op.X-p.X, op.Y-p.Y
				if ddx*ddx+ddy*ddy <= r2 {
					found = append(found, other)
				}
			}
		}
	}
	sort.Strings(found)
	return found
}
