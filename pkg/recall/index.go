package recall

import (
	"fmt"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	kvector "github.com/kshard/vector"
)

// Index is an in-memory HNSW index over note vectors keyed by position.
type Index struct {
	hnsw *hnsw.HNSW[vector.VF32]
	dim  int
}

// NewIndex creates an empty cosine index.
func NewIndex() *Index {
	return &Index{
		hnsw: hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine())),
	}
}

// Size returns the number of indexed vectors.
func (idx *Index) Size() int {
	return idx.hnsw.Size()
}

// Add inserts vec under key. Zero vectors have no direction and are skipped.
func (idx *Index) Add(key uint32, vec []float32) error {
	if isZero(vec) {
		return nil
	}
	if idx.dim == 0 {
		idx.dim = len(vec)
	} else if len(vec) != idx.dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", idx.dim, len(vec))
	}

	idx.hnsw.Insert(vector.VF32{Key: key, Vec: vec})
	return nil
}

// Search returns up to k keys nearest to vec, closest first.
func (idx *Index) Search(vec []float32, k int) ([]uint32, error) {
	if idx.Size() == 0 || k <= 0 || isZero(vec) {
		return nil, nil
	}
	if len(vec) != idx.dim {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", idx.dim, len(vec))
	}

	ef := k * 2
	if ef < 100 {
		ef = 100
	}

	results := idx.hnsw.Search(vector.VF32{Vec: vec}, k, ef)
	keys := make([]uint32, len(results))
	for i, r := range results {
		keys[i] = r.Key
	}
	return keys, nil
}
