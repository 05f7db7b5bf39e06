package loader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	keys := make([]string, 0, 95)
	for i := 0; i < 95; i++ {
		keys = append(keys, fmt.Sprintf("C%d", i))
	}

	tests := []struct {
		name      string
		size      int
		wantSizes []int
	}{
		{"default size", 0, []int{40, 40, 15}},
		{"negative size", -3, []int{40, 40, 15}},
		{"exact multiple", 19, []int{19, 19, 19, 19, 19}},
		{"larger than input", 200, []int{95}},
		{"size one", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(keys, tt.size)

			var flat []string
			for _, c := range chunks {
				flat = append(flat, c...)
			}
			assert.Equal(t, keys, flat, "concatenated chunks reproduce input order")

			if tt.wantSizes != nil {
				sizes := make([]int, len(chunks))
				for i, c := range chunks {
					sizes[i] = len(c)
				}
				assert.Equal(t, tt.wantSizes, sizes)
			} else {
				assert.Len(t, chunks, len(keys))
			}
		})
	}
}

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk([]string{}, 40))
	assert.Empty(t, Chunk[string](nil, 40))
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4}, 2)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{3, 4}, chunks[1])
}
