package mascot

import (
	"context"
	"math/big"

	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// Multiply computes an authenticated share of x*y with one Beaver
// triple. The sequencing party reserves the triple and announces its
// index in its opening, so every party consumes the same one.
func (e *Engine) Multiply(ctx context.Context, reqID string,
	x, y types.Share) (types.Share, error) {

	if err := e.message.Failed(); err != nil {
		return types.Share{}, err
	}

	z, err := e.mulShares(ctx, reqID, x, y)
	if err != nil {
		return types.Share{}, err
	}

	e.store.put(reqID, z)
	return z, nil
}

func (e *Engine) mulShares(ctx context.Context, reqID string,
	x, y types.Share) (types.Share, error) {

	alpha, err := e.prep.MacKeyShare()
	if err != nil {
		return types.Share{}, err
	}

	self := e.message.Self()
	n := e.message.N()
	key := "multiply|" + reqID

	var idx int
	var triple types.Triple
	if self == sequencer {
		idx, triple, err = e.prep.ReserveTriple(ctx)
		if err != nil {
			return types.Share{}, err
		}
		if err := e.openBeaver(key, reqID, idx, x, y, triple); err != nil {
			return types.Share{}, err
		}
	} else {
		// Learn which triple the sequencer reserved before opening
		// our own differences against it.
		opened, err := e.message.AwaitFrom(ctx, key, sequencer, e.conf.OpTimeout)
		if err != nil {
			return types.Share{}, err
		}
		idx = opened.(mulOpen).index

		triple, err = e.prep.TripleAt(ctx, idx)
		if err != nil {
			return types.Share{}, err
		}
		if err := e.openBeaver(key, reqID, idx, x, y, triple); err != nil {
			return types.Share{}, err
		}
	}

	contribs, err := e.message.Await(ctx, key, n, e.conf.OpTimeout)
	if err != nil {
		return types.Share{}, err
	}

	d, ev := big.NewInt(0), big.NewInt(0)
	for _, c := range contribs {
		open := c.(mulOpen)
		d = e.field.Add(d, open.d)
		ev = e.field.Add(ev, open.e)
	}

	// z_i = c_i + d*y_i + e*x_i, with the designated party subtracting
	// the public d*e term. The MAC follows the same linear relation,
	// using alpha_i for the public term.
	de := e.field.Mul(d, ev)

	value := e.field.Add(triple.C.Value,
		e.field.Add(e.field.Mul(d, y.Value), e.field.Mul(ev, x.Value)))
	if self == sequencer {
		value = e.field.Sub(value, de)
	}

	mac := e.field.Add(triple.C.Mac,
		e.field.Add(e.field.Mul(d, y.Mac), e.field.Mul(ev, x.Mac)))
	mac = e.field.Sub(mac, e.field.Mul(alpha, de))

	return types.Share{Value: value, Mac: mac, Owner: self}, nil
}

// openBeaver broadcasts this party's shares of d = x-a and e = y-b and
// feeds them into the local collector.
func (e *Engine) openBeaver(key, reqID string, idx int,
	x, y types.Share, triple types.Triple) error {

	d := e.field.Sub(x.Value, triple.A.Value)
	ev := e.field.Sub(y.Value, triple.B.Value)

	e.message.Deliver(key, e.message.Self(), mulOpen{index: idx, d: d, e: ev})
	err := e.message.Broadcast(types.MultiplyMessage{
		ReqID: reqID,
		Index: idx,
		D:     e.field.Encode(d),
		E:     e.field.Encode(ev),
	})
	if err != nil {
		return xerrors.Errorf("failed to open beaver differences %s: %v", reqID, err)
	}
	return nil
}
