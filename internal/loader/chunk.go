package loader

// DefaultChunkSize bounds the number of keys sent in one batch request
const DefaultChunkSize = 40

// Chunk partitions keys into consecutive slices of at most size elements,
// preserving order. A non-positive size falls back to DefaultChunkSize.
func Chunk[K any](keys []K, size int) [][]K {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(keys) == 0 {
		return nil
	}

	chunks := make([][]K, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end:end])
	}
	return chunks
}
