package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeMasksMatchConfigs(t *testing.T) {
	for cfg := 0; cfg < 256; cfg++ {
		var want uint16
		for edge, corners := range EdgeCorners {
			inA := cfg&(1<<corners[0]) != 0
			inB := cfg&(1<<corners[1]) != 0
			if inA != inB {
				want |= 1 << edge
			}
		}
		assert.Equal(t, want, EdgeMasks[cfg], "config %d", cfg)
	}
}

func TestTriTableUsesOnlyCutEdges(t *testing.T) {
	for cfg := 0; cfg < 256; cfg++ {
		row := TriTable[cfg]
		n := 0
		for n < len(row) && row[n] != -1 {
			edge := row[n]
			require.True(t, edge >= 0 && edge < 12, "config %d", cfg)
			assert.NotZero(t, EdgeMasks[cfg]&(1<<edge), "config %d uses uncut edge %d", cfg, edge)
			n++
		}
		assert.Zero(t, n%3, "config %d", cfg)
		if cfg == 0 || cfg == 255 {
			assert.Zero(t, n, "config %d", cfg)
		} else {
			assert.NotZero(t, n, "config %d", cfg)
		}
		for ; n < len(row); n++ {
			assert.Equal(t, int8(-1), row[n], "config %d", cfg)
		}
	}
}

func TestEdgeCornersAreUnitEdges(t *testing.T) {
	for edge, corners := range EdgeCorners {
		a, b := CornerOffsets[corners[0]], CornerOffsets[corners[1]]
		diff := 0
		for i := 0; i < 3; i++ {
			d := b[i] - a[i]
			if d < 0 {
				d = -d
			}
			diff += d
		}
		assert.Equal(t, 1, diff, "edge %d", edge)
	}
}
