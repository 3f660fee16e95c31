package retrieval

import (
	"math"
	"sort"
	"sync"
)

// Record is one indexed document: its text and the embedding of that text.
type Record struct {
	URL       string
	Title     string
	Content   string
	Embedding []float32
}

// ScoredRecord is a Record with its cosine similarity to a query.
type ScoredRecord struct {
	Record
	Similarity float64
}

// MemoryStore keeps records keyed by URL in insertion order and searches
// them by brute-force cosine similarity. A single writer and many readers
// may use it concurrently. Nothing is persisted.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put stores r under its URL. Replacing an existing URL keeps the
// position it was first inserted at.
func (s *MemoryStore) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.URL]; !ok {
		s.order = append(s.order, r.URL)
	}
	s.records[r.URL] = r
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Reset removes every record.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.records = make(map[string]Record)
}

// All returns the stored records in insertion order without embeddings.
func (s *MemoryStore) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, url := range s.order {
		r := s.records[url]
		r.Embedding = nil
		out = append(out, r)
	}
	return out
}

// Search scores every record against vector and returns the topK most
// similar, highest first. Equal scores keep insertion order.
func (s *MemoryStore) Search(vector []float32, topK int) []ScoredRecord {
	if topK <= 0 {
		return nil
	}

	s.mu.RLock()
	scored := make([]ScoredRecord, 0, len(s.order))
	queryNorm := norm(vector)
	for _, url := range s.order {
		r := s.records[url]
		scored = append(scored, ScoredRecord{Record: r, Similarity: dotProduct(vector, r.Embedding, queryNorm)})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). It is 0 when either vector
// has zero norm or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	return dotProduct(a, b, norm(a))
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// dotProduct computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func dotProduct(a, b []float32, aNorm float64) float64 {
	if len(a) != len(b) || aNorm == 0 {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return dot / (aNorm * bNorm)
}
