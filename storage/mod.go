package storage

import (
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// ResultLog records the values a session opened, keyed by request id.
// It is append-only: request ids are never reused within a session, so
// a second record under the same id is rejected.
type ResultLog interface {
	Record(reqID string, res types.Result) error
	Get(reqID string) (types.Result, bool)
	For(action func(reqID string, res types.Result) error) error
	Len() int

	// Digest returns a deterministic hash over everything recorded,
	// independent of recording order. Two honest parties of the same
	// session end up with the same digest.
	Digest() []byte
}

// InMemoryLog is the default ResultLog. Opened values are public to
// all parties anyway, so there is no point encrypting them at rest;
// the log simply does not survive the process.
type InMemoryLog struct {
	mu    sync.RWMutex
	store map[string]types.Result
}

// NewInMemoryLog creates an empty log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		store: make(map[string]types.Result),
	}
}

// Record implements ResultLog.
func (l *InMemoryLog) Record(reqID string, res types.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.store[reqID]; ok {
		return xerrors.Errorf("result %q already recorded", reqID)
	}
	l.store[reqID] = res
	return nil
}

// Get implements ResultLog.
func (l *InMemoryLog) Get(reqID string) (types.Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.store[reqID]
	return res, ok
}

// For implements ResultLog.
func (l *InMemoryLog) For(action func(reqID string, res types.Result) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for reqID, res := range l.store {
		if err := action(reqID, res); err != nil {
			return err
		}
	}
	return nil
}

// Len implements ResultLog.
func (l *InMemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.store)
}

// Digest implements ResultLog.
func (l *InMemoryLog) Digest() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sorted := make([]string, 0, len(l.store))
	for reqID := range l.store {
		sorted = append(sorted, reqID)
	}
	sort.Strings(sorted)

	h := sha256.New()
	for _, reqID := range sorted {
		res := l.store[reqID]
		h.Write([]byte(reqID))
		if res.Value != nil {
			h.Write(res.Value.Bytes())
		}
		h.Write(res.Proof)
	}
	return h.Sum(nil)
}
