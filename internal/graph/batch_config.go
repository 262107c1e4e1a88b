package graph

// BatchConfig defines UNWIND batch sizes used when bulk-loading a snapshot.
//
// Nodes carry the full property map so batches stay moderate; relationships
// only carry two element ids plus properties and can be larger.
type BatchConfig struct {
	NodeBatchSize         int
	RelationshipBatchSize int
}

// DefaultBatchConfig returns batch sizes for knowledge graphs up to ~100K nodes
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize:         1000,
		RelationshipBatchSize: 5000,
	}
}

// WithNodeBatchSize overrides the node batch size; non-positive values keep the current size
func (bc BatchConfig) WithNodeBatchSize(size int) BatchConfig {
	if size > 0 {
		bc.NodeBatchSize = size
		if bc.RelationshipBatchSize < size {
			bc.RelationshipBatchSize = size
		}
	}
	return bc
}

// Chunks splits n items into [start,end) ranges of at most size
func Chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
