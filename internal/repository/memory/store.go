package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

// Store keeps snapshots in process memory. A positive maxValueBytes rejects
// larger values with *errors.ErrQuotaExceeded, like browser storage does.
type Store struct {
	mu            sync.RWMutex
	data          map[string][]byte
	maxValueBytes int
}

var (
	_ repository.SnapshotStore = (*Store)(nil)
	_ repository.KeyLister     = (*Store)(nil)
)

func NewStore(maxValueBytes int) *Store {
	return &Store{
		data:          make(map[string][]byte),
		maxValueBytes: maxValueBytes,
	}
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "snapshot", ID: key}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return &errors.ErrQuotaExceeded{Key: key, Size: len(value), Limit: s.maxValueBytes}
	}
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
