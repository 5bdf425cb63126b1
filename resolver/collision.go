package resolver

import "fmt"

// Collision reports a canonical gene that was reached from more than one input
// row. Both rows are kept by the caller; collisions are surfaced for review.
type Collision struct {
	Gene   *Gene
	First  string // raw identifier that first resolved to Gene
	Second string // raw identifier that resolved to Gene again
}

func (c Collision) String() string {
	return fmt.Sprintf("%s (%s) resolved from both %q and %q", c.Gene.ID, c.Gene.Symbol, c.First, c.Second)
}

// Collisions tracks resolved genes within one ingestion scope. It is not safe
// for concurrent use.
type Collisions struct {
	seen map[uint32]string
	list []Collision
}

// NewCollisions creates an empty tracker.
func NewCollisions() *Collisions {
	return &Collisions{seen: make(map[uint32]string)}
}

// Observe records that raw resolved to gene. It returns the collision if gene
// was already reached from an earlier row, including an identical raw id.
func (c *Collisions) Observe(raw string, gene *Gene) (Collision, bool) {
	first, ok := c.seen[gene.Index]
	if !ok {
		c.seen[gene.Index] = raw
		return Collision{}, false
	}

	col := Collision{Gene: gene, First: first, Second: raw}
	c.list = append(c.list, col)
	return col, true
}

// Len returns the number of collisions observed.
func (c *Collisions) Len() int { return len(c.list) }

// All returns all observed collisions in order.
func (c *Collisions) All() []Collision { return c.list }
