package mascot

import (
	"math/big"
	"sync"

	"github.com/mindhaven/mpcnet/types"
)

// shareStore keeps the authenticated share produced by each completed
// operation, keyed by request ID.
type shareStore struct {
	*sync.RWMutex
	store map[string]types.Share
}

func newShareStore() *shareStore {
	return &shareStore{
		RWMutex: &sync.RWMutex{},
		store:   map[string]types.Share{},
	}
}

func (s *shareStore) put(reqID string, share types.Share) {
	s.Lock()
	defer s.Unlock()
	s.store[reqID] = share
}

func (s *shareStore) get(reqID string) (types.Share, bool) {
	s.RLock()
	defer s.RUnlock()
	share, ok := s.store[reqID]
	return share, ok
}

// Lookup returns the stored share of a finished operation.
func (e *Engine) Lookup(reqID string) (types.Share, bool) {
	return e.store.get(reqID)
}

// Linear operations on authenticated shares. They are local: additive
// shares and their MAC shares are both linear in the secret, so no
// communication is needed.

func (e *Engine) addShares(a, b types.Share) types.Share {
	return types.Share{
		Value: e.field.Add(a.Value, b.Value),
		Mac:   e.field.Add(a.Mac, b.Mac),
		Owner: e.message.Self(),
	}
}

func (e *Engine) subShares(a, b types.Share) types.Share {
	return types.Share{
		Value: e.field.Sub(a.Value, b.Value),
		Mac:   e.field.Sub(a.Mac, b.Mac),
		Owner: e.message.Self(),
	}
}

// mulPublic multiplies a share by a public constant.
func (e *Engine) mulPublic(a types.Share, k *big.Int) types.Share {
	return types.Share{
		Value: e.field.Mul(a.Value, k),
		Mac:   e.field.Mul(a.Mac, k),
		Owner: e.message.Self(),
	}
}

// addPublic adds a public constant to a share. The designated party
// adjusts its value share; every party adjusts its MAC share by
// alpha_i * k so the MAC relation holds for the new value.
func (e *Engine) addPublic(a types.Share, k *big.Int, alpha *big.Int) types.Share {
	value := a.Value
	if e.message.Self() == sequencer {
		value = e.field.Add(value, k)
	}

	return types.Share{
		Value: value,
		Mac:   e.field.Add(a.Mac, e.field.Mul(alpha, k)),
		Owner: e.message.Self(),
	}
}

// zeroShare is a trivially valid share of zero.
func (e *Engine) zeroShare() types.Share {
	return types.Share{
		Value: big.NewInt(0),
		Mac:   big.NewInt(0),
		Owner: e.message.Self(),
	}
}
