package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMWC_Deterministic(t *testing.T) {
	a := NewMWC(12345)
	b := NewMWC(12345)

	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Next(), b.Next(), "step %d", i)
	}
}

func TestMWC_SeedResets(t *testing.T) {
	r := NewMWC(7)
	first := make([]uint32, 16)
	for i := range first {
		first[i] = r.Next()
	}

	r.Seed(7)
	for i := range first {
		assert.Equal(t, first[i], r.Next())
	}
}

func TestMWC_DifferentSeedsDiverge(t *testing.T) {
	a := NewMWC(1)
	b := NewMWC(2)

	same := 0
	for i := 0; i < 64; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	assert.Less(t, same, 4)
}

func TestMWC_FirstStep(t *testing.T) {
	// x starts at 30903 and c at the seed, so the first output is x*K + c.
	r := NewMWC(5)
	x := uint32(initialX)
	assert.Equal(t, x*multiplier+5, r.Next())
}

func TestMWC_Float64Range(t *testing.T) {
	r := NewMWC(99)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestContext_TableIsPermutation(t *testing.T) {
	seeds := []uint32{0, 1, 2, 23470, 12345, 0xffffffff, 0x80000000}
	for s := uint32(0); s < 200; s++ {
		seeds = append(seeds, s*2654435761)
	}

	for _, seed := range seeds {
		table := NewContext(seed).Table()
		require.Len(t, table, TableSize)

		seen := make([]bool, TableSize)
		for _, v := range table {
			require.Less(t, int(v), TableSize, "seed %d", seed)
			require.False(t, seen[v], "seed %d: duplicate value %d", seed, v)
			seen[v] = true
		}
	}
}

func TestContext_SameSeedSameTable(t *testing.T) {
	assert.Equal(t, NewContext(4242).Table(), NewContext(4242).Table())
	assert.NotEqual(t, NewContext(4242).Table(), NewContext(4243).Table())
}

func TestContext_Hashes(t *testing.T) {
	ctx := NewContext(321)
	table := ctx.Table()

	assert.Equal(t, int(table[5]), ctx.Hash1(5))
	assert.Equal(t, int(table[5]), ctx.Hash1(5+TableSize))
	// negative arguments wrap like two's complement
	assert.Equal(t, int(table[TableSize-1]), ctx.Hash1(-1))

	assert.Equal(t, ctx.Hash1(3+ctx.Hash1(4)), ctx.Hash2(3, 4))
	assert.Equal(t, ctx.Hash1(2+ctx.Hash2(3, 4)), ctx.Hash3(2, 3, 4))
	assert.Equal(t, ctx.Hash1(1+ctx.Hash3(2, 3, 4)), ctx.Hash4(1, 2, 3, 4))
	assert.Equal(t, ctx.Hash1(0+ctx.Hash4(1, 2, 3, 4)), ctx.Hash5(0, 1, 2, 3, 4))
}

func TestContext_HashN(t *testing.T) {
	ctx := NewContext(77)

	tests := []struct {
		name   string
		coords []int
		want   int
	}{
		{"one", []int{9}, ctx.Hash1(9)},
		{"two", []int{-3, 9}, ctx.Hash2(-3, 9)},
		{"three", []int{1, -3, 9}, ctx.Hash3(1, -3, 9)},
		{"four", []int{7, 1, -3, 9}, ctx.Hash4(7, 1, -3, 9)},
		{"five", []int{100, 7, 1, -3, 9}, ctx.Hash5(100, 7, 1, -3, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ctx.HashN(tt.coords))
		})
	}
}
