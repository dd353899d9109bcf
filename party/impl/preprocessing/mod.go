package preprocessing

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/mindhaven/mpcnet/field"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl/message"
	"github.com/mindhaven/mpcnet/types"
)

// the leader deals preprocessing material for the whole roster. It is
// the pluggable generation slot: a maliciously secure OT-based
// generator would replace the dealer without touching the pool
// contract.
const dealer = 0

// Generator is the material production contract. The in-tree
// implementation is the dealer protocol; an OT-based generator would
// satisfy the same interface and feed the same pools.
type Generator interface {
	GenerateTriples(count int) error
	GenerateBits(count int) error
	GenerateMasks(owner, count int) error
}

var _ Generator = (*Preprocessing)(nil)

// Preprocessing produces and caches multiplication triples, random
// bits and input masks ahead of need, replenishing asynchronously once
// a pool falls under its watermark.
type Preprocessing struct {
	conf    *party.Configuration
	message *message.MessageModule
	field   *field.Field

	triples *pool
	bits    *pool

	maskMu sync.Mutex
	masks  map[int]*pool

	macMu       sync.Mutex
	macKeyShare *big.Int
	alpha       *big.Int // full MAC key, dealer only

	refillMu  sync.Mutex
	refilling map[string]bool

	// genMu serializes dealing. Two interleaved generations would
	// deliver their batches in a different order per destination, and
	// the parties would disagree on which item a pool index names.
	genMu sync.Mutex
}

// NewPreprocessingModule creates the manager and registers its message
// handlers.
func NewPreprocessingModule(conf *party.Configuration, messageModule *message.MessageModule,
	f *field.Field) *Preprocessing {

	p := Preprocessing{
		conf:      conf,
		message:   messageModule,
		field:     f,
		triples:   newPool(),
		bits:      newPool(),
		masks:     map[int]*pool{},
		refilling: map[string]bool{},
	}

	// message registry callbacks
	p.conf.MessageRegistry.RegisterMessageCallback(types.MacKeyMessage{}, p.ProcessMacKeyMsg)
	p.conf.MessageRegistry.RegisterMessageCallback(types.PrepRequestMessage{}, p.ProcessPrepRequestMsg)
	p.conf.MessageRegistry.RegisterMessageCallback(types.TripleBatchMessage{}, p.ProcessTripleBatchMsg)
	p.conf.MessageRegistry.RegisterMessageCallback(types.BitBatchMessage{}, p.ProcessBitBatchMsg)
	p.conf.MessageRegistry.RegisterMessageCallback(types.MaskBatchMessage{}, p.ProcessMaskBatchMsg)

	return &p
}

func (p *Preprocessing) maskPool(owner int) *pool {
	p.maskMu.Lock()
	defer p.maskMu.Unlock()
	pl, ok := p.masks[owner]
	if !ok {
		pl = newPool()
		p.masks[owner] = pl
	}
	return pl
}

/** MAC key setup **/

// SetupMacKey runs the once-per-session MAC key sharing. The dealer
// samples every party's additive share of the global key and delivers
// it; the key itself is never reconstructed by anyone else.
func (p *Preprocessing) SetupMacKey(ctx context.Context) error {
	if p.message.Self() == dealer {
		shares := make([]*big.Int, p.message.N())
		alpha := big.NewInt(0)
		for i := range shares {
			s, err := p.field.Rand()
			if err != nil {
				return types.WrapError(types.CryptoError, err, "sample mac key share")
			}
			shares[i] = s
			alpha = p.field.Add(alpha, s)
		}
		for i, s := range shares {
			if i == dealer {
				continue
			}
			err := p.message.Unicast(i, types.MacKeyMessage{Share: p.field.Encode(s)})
			if err != nil {
				return err
			}
		}
		p.macMu.Lock()
		p.macKeyShare = shares[dealer]
		p.alpha = alpha
		p.macMu.Unlock()
		return nil
	}

	v, err := p.message.AwaitFrom(ctx, "mackey", dealer, p.conf.HandshakeTimeout)
	p.message.Release("mackey")
	if err != nil {
		return err
	}
	p.macMu.Lock()
	p.macKeyShare = v.(*big.Int)
	p.macMu.Unlock()
	return nil
}

// MacKeyShare returns this party's additive share of the global MAC
// key.
func (p *Preprocessing) MacKeyShare() (*big.Int, error) {
	p.macMu.Lock()
	defer p.macMu.Unlock()
	if p.macKeyShare == nil {
		return nil, types.NewError(types.ProtocolError, "mac key not set up")
	}
	return p.macKeyShare, nil
}

/** Pool access **/

// ReserveTriple claims the next triple index and blocks until its
// share is available. Called by the sequencing party of a
// multiplication.
func (p *Preprocessing) ReserveTriple(ctx context.Context) (int, types.Triple, error) {
	idx := p.triples.reserve(1)
	t, err := p.TripleAt(ctx, idx)
	return idx, t, err
}

// TripleAt takes the triple share dealt at idx.
func (p *Preprocessing) TripleAt(ctx context.Context, idx int) (types.Triple, error) {
	p.replenish("triple", -1, p.triples)
	v, err := p.triples.take(ctx, idx, p.conf.OpTimeout, p.message.FailedChan())
	if err != nil {
		return types.Triple{}, err
	}
	return v.(types.Triple), nil
}

// ReserveBits claims the next k bit indexes and blocks until they are
// available.
func (p *Preprocessing) ReserveBits(ctx context.Context, k int) (int, []types.Share, error) {
	start := p.bits.reserve(k)
	bits, err := p.BitsAt(ctx, start, k)
	return start, bits, err
}

// BitsAt takes k random-bit shares starting at index start. The
// watermark is re-checked on every take: one comparison can consume
// more bits than a single batch holds.
func (p *Preprocessing) BitsAt(ctx context.Context, start, k int) ([]types.Share, error) {
	bits := make([]types.Share, k)
	for i := 0; i < k; i++ {
		p.replenish("bit", -1, p.bits)
		v, err := p.bits.take(ctx, start+i, p.conf.OpTimeout, p.message.FailedChan())
		if err != nil {
			return nil, err
		}
		bits[i] = v.(types.Share)
	}
	return bits, nil
}

// ReserveMask claims the next input mask for owner. Only the owner
// sequences its own mask pool.
func (p *Preprocessing) ReserveMask(ctx context.Context, owner int) (int, types.Mask, error) {
	pl := p.maskPool(owner)
	idx := pl.reserve(1)
	m, err := p.MaskAt(ctx, owner, idx)
	return idx, m, err
}

// MaskAt takes the input-mask share for owner dealt at idx.
func (p *Preprocessing) MaskAt(ctx context.Context, owner, idx int) (types.Mask, error) {
	pl := p.maskPool(owner)
	p.replenish("mask", owner, pl)
	v, err := pl.take(ctx, idx, p.conf.OpTimeout, p.message.FailedChan())
	if err != nil {
		return types.Mask{}, err
	}
	return v.(types.Mask), nil
}

// Stats exposes pool counters, used by tests to assert single-use
// consumption.
func (p *Preprocessing) Stats() (triplesGenerated, triplesConsumed int) {
	return p.triples.stats()
}

// WarmUp deals the initial batches. Only the dealer generates;
// everyone else receives its batches as they arrive.
func (p *Preprocessing) WarmUp() {
	if p.message.Self() != dealer {
		return
	}
	batch := p.conf.PreprocessingBatchSize
	if err := p.GenerateTriples(batch); err != nil {
		log.Error().Msgf("party %d: triple warmup: %v", p.message.Self(), err)
	}
	if err := p.GenerateBits(batch); err != nil {
		log.Error().Msgf("party %d: bit warmup: %v", p.message.Self(), err)
	}
	for _, info := range p.message.Roster() {
		if err := p.GenerateMasks(info.ID, batch); err != nil {
			log.Error().Msgf("party %d: mask warmup: %v", p.message.Self(), err)
		}
	}
}

// Cleanup discards all cached, unconsumed material. Preprocessing
// material never survives its session: reuse breaks security.
func (p *Preprocessing) Cleanup() {
	p.triples.drain()
	p.bits.drain()
	p.maskMu.Lock()
	for _, pl := range p.masks {
		pl.drain()
	}
	p.maskMu.Unlock()
	p.macMu.Lock()
	p.macKeyShare = nil
	p.alpha = nil
	p.macMu.Unlock()
}

/** Refill **/

// replenish kicks an asynchronous refill when the pool falls under its
// watermark. At most one refill per pool is in flight; callers are
// never blocked on generation unless the pool is fully drained.
func (p *Preprocessing) replenish(kind string, owner int, pl *pool) {
	batch := p.conf.PreprocessingBatchSize
	if pl.remaining() > batch/4 {
		return
	}

	key := kind
	if owner >= 0 {
		key = fmt.Sprintf("%s|%d", kind, owner)
	}
	p.refillMu.Lock()
	if p.refilling[key] {
		p.refillMu.Unlock()
		return
	}
	p.refilling[key] = true
	p.refillMu.Unlock()

	go func() {
		defer func() {
			p.refillMu.Lock()
			delete(p.refilling, key)
			p.refillMu.Unlock()
		}()

		var err error
		if p.message.Self() == dealer {
			switch kind {
			case "triple":
				err = p.GenerateTriples(batch)
			case "bit":
				err = p.GenerateBits(batch)
			case "mask":
				err = p.GenerateMasks(owner, batch)
			}
		} else {
			err = p.message.Unicast(dealer, types.PrepRequestMessage{
				Kind:  kind,
				Owner: owner,
				Count: batch,
			})
		}
		if err != nil {
			log.Warn().Msgf("party %d: %s refill: %v", p.message.Self(), key, err)
		}
	}()
}
