package credential

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"qrattend/internal/keylock"
)

// MemoryStore keeps active credentials in process memory. Operations on the
// same student are serialized by a per-student lock; the map lock is only
// held for the lookup or write itself.
type MemoryStore struct {
	locks  keylock.Map
	mu     sync.RWMutex
	active map[string]Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]Credential)}
}

func (s *MemoryStore) SetActive(_ context.Context, cred Credential) error {
	if err := cred.validate(); err != nil {
		return err
	}
	defer s.locks.Lock(cred.StudentID)()

	s.mu.Lock()
	s.active[cred.StudentID] = cred
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PeekActive(_ context.Context, studentID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.active[studentID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (s *MemoryStore) Consume(_ context.Context, studentID, nonce string, now time.Time) (ConsumeResult, error) {
	defer s.locks.Lock(studentID)()

	s.mu.RLock()
	cred, ok := s.active[studentID]
	s.mu.RUnlock()

	switch {
	case !ok:
		return NoActiveCredential, nil
	case cred.Expired(now):
		return Expired, nil
	case subtle.ConstantTimeCompare([]byte(cred.Nonce), []byte(nonce)) != 1:
		return NonceMismatch, nil
	}

	s.mu.Lock()
	delete(s.active, studentID)
	s.mu.Unlock()
	return Consumed, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var candidates []string
	for id, cred := range s.active {
		if cred.Expired(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s.locks.Do(id, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			// The student may have been reissued since the snapshot.
			if cred, ok := s.active[id]; ok && cred.Expired(now) {
				delete(s.active, id)
				removed++
			}
		})
	}
	return removed, nil
}

// Len reports how many credentials are held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}
