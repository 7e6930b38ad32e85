package random

const (
	// TableSizeLog is log2 of TableSize.
	TableSizeLog = 10
	// TableSize is the number of entries in the permutation table.
	TableSize = 1 << TableSizeLog

	tableMask = TableSize - 1
)

// Context holds the permutation table for one seed. Every basis hashes lattice
// coordinates through a Context, so two contexts built from the same seed
// produce bit-identical noise.
//
// A Context is read-only after construction and may be shared between
// goroutines.
type Context struct {
	seed  uint32
	table [TableSize]uint16
}

// NewContext builds the permutation table for seed.
func NewContext(seed uint32) *Context {
	ctx := &Context{seed: seed}
	ctx.build(NewMWC(seed))
	return ctx
}

// build shuffles a doubly linked ring of all table indices. Each step splices
// one node of the ring to a random position, applying the same three-way
// rotation to the forward links and to the backward links, so both arrays stay
// permutations after every step.
func (ctx *Context) build(r *MWC) {
	var back, fwd [TableSize]uint16

	for i := 0; i < TableSize; i++ {
		back[i] = uint16((i + TableSize - 1) & tableMask)
		fwd[i] = uint16((i + 1) & tableMask)
	}

	for i := 0; i < TableSize; i++ {
		j := int(r.Next() >> (32 - TableSizeLog))
		bj := int(back[j])
		fi := int(fwd[i])
		fj := int(fwd[j])

		t := fwd[i]
		fwd[i] = fwd[bj]
		fwd[bj] = fwd[j]
		fwd[j] = t

		t = back[fi]
		back[fi] = back[fj]
		back[fj] = back[j]
		back[j] = t
	}

	ctx.table = fwd
}

// Seed returns the seed the table was built from.
func (ctx *Context) Seed() uint32 {
	return ctx.seed
}

// Table returns a copy of the permutation table.
func (ctx *Context) Table() []uint16 {
	out := make([]uint16, TableSize)
	copy(out, ctx.table[:])
	return out
}

// Hash1 looks a up in the table. Negative values wrap like two's complement.
func (ctx *Context) Hash1(a int) int {
	return int(ctx.table[a&tableMask])
}

func (ctx *Context) Hash2(a, b int) int {
	return ctx.Hash1(a + ctx.Hash1(b))
}

func (ctx *Context) Hash3(a, b, c int) int {
	return ctx.Hash1(a + ctx.Hash2(b, c))
}

func (ctx *Context) Hash4(a, b, c, d int) int {
	return ctx.Hash1(a + ctx.Hash3(b, c, d))
}

func (ctx *Context) Hash5(a, b, c, d, e int) int {
	return ctx.Hash1(a + ctx.Hash4(b, c, d, e))
}

// HashN chains Hash1 over coords, last coordinate first. For 1 to 5
// coordinates it matches Hash1..Hash5.
func (ctx *Context) HashN(coords []int) int {
	n := len(coords)
	if n == 0 {
		return 0
	}
	h := ctx.Hash1(coords[n-1])
	for i := n - 2; i >= 0; i-- {
		h = ctx.Hash1(coords[i] + h)
	}
	return h
}
