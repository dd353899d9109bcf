package preprocessing

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
)

func (p *Preprocessing) decodeShare(value, mac []byte) (types.Share, error) {
	v, err := p.field.Decode(value)
	if err != nil {
		return types.Share{}, types.WrapError(types.CryptoError, err, "share value")
	}
	m, err := p.field.Decode(mac)
	if err != nil {
		return types.Share{}, types.WrapError(types.CryptoError, err, "share mac")
	}
	return types.Share{Value: v, Mac: m, Owner: p.message.Self()}, nil
}

// ProcessMacKeyMsg is a callback function to handle the dealt MAC key
// share
func (p *Preprocessing) ProcessMacKeyMsg(msg types.Message, pkt transport.Packet) error {
	mk, ok := msg.(*types.MacKeyMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if pkt.Header.Source != dealer {
		return types.NewError(types.ProtocolError,
			"mac key share from non-dealer party %d", pkt.Header.Source)
	}
	share, err := p.field.Decode(mk.Share)
	if err != nil {
		return types.WrapError(types.CryptoError, err, "mac key share")
	}
	p.message.Deliver("mackey", dealer, share)
	return nil
}

// ProcessPrepRequestMsg is a callback function to handle a refill
// request. Only the dealer serves them; generation runs off the
// message loop.
func (p *Preprocessing) ProcessPrepRequestMsg(msg types.Message, pkt transport.Packet) error {
	req, ok := msg.(*types.PrepRequestMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if p.message.Self() != dealer {
		return types.NewError(types.ProtocolError, "refill request sent to non-dealer")
	}

	count := req.Count
	if count <= 0 || count > 4*p.conf.PreprocessingBatchSize {
		count = p.conf.PreprocessingBatchSize
	}
	kind := req.Kind
	owner := req.Owner

	key := kind
	if kind == "mask" {
		key = fmt.Sprintf("%s|%d", kind, owner)
	}

	// the non-dealers drain in lockstep and all request at once; the
	// single-flight gate collapses them into one generation per kind
	p.refillMu.Lock()
	if p.refilling[key] {
		p.refillMu.Unlock()
		return nil
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
		switch kind {
		case "triple":
			err = p.GenerateTriples(count)
		case "bit":
			err = p.GenerateBits(count)
		case "mask":
			err = p.GenerateMasks(owner, count)
		default:
			err = types.NewError(types.ProtocolError, "unknown preprocessing kind %q", kind)
		}
		if err != nil {
			log.Warn().Msgf("party %d: serve %s refill for party %d: %v",
				p.message.Self(), kind, pkt.Header.Source, err)
		}
	}()
	return nil
}

// ProcessTripleBatchMsg is a callback function to handle a dealt
// triple batch
func (p *Preprocessing) ProcessTripleBatchMsg(msg types.Message, pkt transport.Packet) error {
	batch, ok := msg.(*types.TripleBatchMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if pkt.Header.Source != dealer {
		return types.NewError(types.ProtocolError,
			"triple batch from non-dealer party %d", pkt.Header.Source)
	}

	items := make([]interface{}, 0, len(batch.Batch))
	for _, w := range batch.Batch {
		a, err := p.decodeShare(w.A, w.MacA)
		if err != nil {
			return err
		}
		b, err := p.decodeShare(w.B, w.MacB)
		if err != nil {
			return err
		}
		c, err := p.decodeShare(w.C, w.MacC)
		if err != nil {
			return err
		}
		items = append(items, types.Triple{A: a, B: b, C: c})
	}
	p.triples.add(items)
	return nil
}

// ProcessBitBatchMsg is a callback function to handle a dealt
// random-bit batch
func (p *Preprocessing) ProcessBitBatchMsg(msg types.Message, pkt transport.Packet) error {
	batch, ok := msg.(*types.BitBatchMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if pkt.Header.Source != dealer {
		return types.NewError(types.ProtocolError,
			"bit batch from non-dealer party %d", pkt.Header.Source)
	}

	items := make([]interface{}, 0, len(batch.Batch))
	for _, w := range batch.Batch {
		s, err := p.decodeShare(w.Value, w.Mac)
		if err != nil {
			return err
		}
		items = append(items, s)
	}
	p.bits.add(items)
	return nil
}

// ProcessMaskBatchMsg is a callback function to handle a dealt
// input-mask batch
func (p *Preprocessing) ProcessMaskBatchMsg(msg types.Message, pkt transport.Packet) error {
	batch, ok := msg.(*types.MaskBatchMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if pkt.Header.Source != dealer {
		return types.NewError(types.ProtocolError,
			"mask batch from non-dealer party %d", pkt.Header.Source)
	}

	items := make([]interface{}, 0, len(batch.Batch))
	for _, w := range batch.Batch {
		s, err := p.decodeShare(w.Value, w.Mac)
		if err != nil {
			return err
		}
		mask := types.Mask{Share: s}
		if len(w.Clear) > 0 {
			clear, err := p.field.Decode(w.Clear)
			if err != nil {
				return types.WrapError(types.CryptoError, err, "mask clear value")
			}
			mask.Clear = clear
		}
		items = append(items, mask)
	}
	p.maskPool(batch.Owner).add(items)
	return nil
}
