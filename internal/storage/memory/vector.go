package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/0x5457/repograph/internal/embeddings"
	"github.com/0x5457/repograph/internal/storage"
)

// InMemoryVectorStore scores every stored vector exactly.
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	data map[string][]float32
}

var _ storage.VectorStore = (*InMemoryVectorStore)(nil)

func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{data: make(map[string][]float32)}
}

func (s *InMemoryVectorStore) Upsert(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		s.data[id] = vec
	}
	return nil
}

func (s *InMemoryVectorStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data, id)
	}
	return nil
}

func (s *InMemoryVectorStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]float32)
	return nil
}

func (s *InMemoryVectorStore) Query(_ context.Context, vector []float32, topK int) ([]storage.ScoredID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ScoredID, 0, len(s.data))
	for id, v := range s.data {
		out = append(out, storage.ScoredID{ID: id, Score: embeddings.Cosine(v, vector)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *InMemoryVectorStore) Close() error { return nil }
