package llm

import (
	"math"
	"sort"
	"sync"
)

// Document is one indexed registry entry.
type Document struct {
	ID        string
	Embedding []float32
	Metadata  map[string]string
}

// SearchHit is one nearest-neighbor result. Distance is cosine distance
// (1 - cosine similarity), smaller is closer.
type SearchHit struct {
	ID       string
	Metadata map[string]string
	Distance float64
}

// Store is the narrow vector-store contract the classifier depends on.
// Writes happen only at index build; search is read-heavy and concurrent.
type Store interface {
	Add(docs []Document)
	Search(query []float32, k int) []SearchHit
	Clear()
	Len() int
}

// memoryStore is a brute-force cosine index. Registries hold at most a few
// thousand entries, which an exact linear scan covers comfortably; anything
// larger can swap in an ANN index behind the same interface.
type memoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Add(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
}

func (s *memoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *memoryStore) Search(query []float32, k int) []SearchHit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.docs) == 0 {
		return nil
	}

	hits := make([]SearchHit, 0, len(s.docs))
	for _, d := range s.docs {
		hits = append(hits, SearchHit{
			ID:       d.ID,
			Metadata: d.Metadata,
			Distance: 1 - cosineSimilarity(query, d.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
