package mascot

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// statSlack is the statistical hiding margin, in bits, added on top of
// the compared bit length when masking the difference.
const statSlack = 40

// Compare computes an authenticated share of the predicate x > y for
// inputs known to fit in the configured bit length k. It shifts the
// difference into [0, 2^(k+1)) so that bit k of delta = x - y - 1 + 2^k
// is the comparison result, opens delta masked with shared random
// bits, and extracts bit k with a borrow-chain circuit over the public
// sum. The chain costs one multiplication per bit, k+1 in total.
func (e *Engine) Compare(ctx context.Context, reqID string,
	x, y types.Share) (types.Share, error) {

	if err := e.message.Failed(); err != nil {
		return types.Share{}, err
	}

	alpha, err := e.prep.MacKeyShare()
	if err != nil {
		return types.Share{}, err
	}

	k := e.conf.CompareBitLength
	m := k + statSlack
	if max := e.field.Modulus().BitLen() - 2; m > max {
		m = max
	}
	if m <= k {
		return types.Share{}, types.NewError(types.CryptoError,
			"compare %s: modulus too small for %d-bit comparison", reqID, k)
	}

	self := e.message.Self()
	n := e.message.N()
	key := "compare|" + reqID

	// delta = x - y - 1 + 2^k, in [0, 2^(k+1)) for k-bit inputs.
	offset := new(big.Int).Lsh(big.NewInt(1), uint(k))
	offset.Sub(offset, big.NewInt(1))
	delta := e.addPublic(e.subShares(x, y), offset, alpha)

	var start int
	var bits []types.Share
	if self == sequencer {
		start, bits, err = e.prep.ReserveBits(ctx, m)
		if err != nil {
			return types.Share{}, err
		}
		if err := e.openMasked(key, reqID, start, delta, bits); err != nil {
			return types.Share{}, err
		}
	} else {
		opened, err := e.message.AwaitFrom(ctx, key, sequencer, e.conf.OpTimeout)
		if err != nil {
			return types.Share{}, err
		}
		start = opened.(cmpOpen).start

		bits, err = e.prep.BitsAt(ctx, start, m)
		if err != nil {
			return types.Share{}, err
		}
		if err := e.openMasked(key, reqID, start, delta, bits); err != nil {
			return types.Share{}, err
		}
	}

	contribs, err := e.message.Await(ctx, key, n, e.conf.OpTimeout)
	if err != nil {
		return types.Share{}, err
	}
	c := big.NewInt(0)
	for _, v := range contribs {
		c = e.field.Add(c, v.(cmpOpen).c)
	}

	// Borrow chain over the public bits of c and the shared mask bits:
	// computing c - r bit by bit, borrow_(i+1) = r_i + borrow_i - r_i*borrow_i
	// when c_i is 0, and r_i*borrow_i when c_i is 1.
	pm1 := new(big.Int).Sub(e.field.Modulus(), big.NewInt(1))
	pm2 := new(big.Int).Sub(e.field.Modulus(), big.NewInt(2))

	borrow := e.zeroShare()
	for i := 0; i < k; i++ {
		prod, err := e.mulShares(ctx, fmt.Sprintf("%s|b%d", reqID, i), bits[i], borrow)
		if err != nil {
			return types.Share{}, err
		}
		if c.Bit(i) == 0 {
			borrow = e.addShares(e.addShares(bits[i], borrow), e.mulPublic(prod, pm1))
		} else {
			borrow = prod
		}
	}

	// Bit k of delta is c_k xor (r_k xor borrow_k).
	prod, err := e.mulShares(ctx, reqID+"|bk", bits[k], borrow)
	if err != nil {
		return types.Share{}, err
	}
	inner := e.addShares(e.addShares(bits[k], borrow), e.mulPublic(prod, pm2))

	result := inner
	if c.Bit(k) == 1 {
		result = e.addPublic(e.mulPublic(inner, pm1), big.NewInt(1), alpha)
	}
	result.Owner = self

	e.store.put(reqID, result)
	return result, nil
}

// openMasked broadcasts this party's share of c = delta + r, where r
// is the integer assembled from the reserved mask bits.
func (e *Engine) openMasked(key, reqID string, start int,
	delta types.Share, bits []types.Share) error {

	masked := delta
	for i, bit := range bits {
		weight := new(big.Int).Lsh(big.NewInt(1), uint(i))
		masked = e.addShares(masked, e.mulPublic(bit, weight))
	}

	e.message.Deliver(key, e.message.Self(), cmpOpen{start: start, c: masked.Value})
	err := e.message.Broadcast(types.CompareMessage{
		ReqID: reqID,
		Start: start,
		C:     e.field.Encode(masked.Value),
	})
	if err != nil {
		return xerrors.Errorf("failed to open masked difference %s: %v", reqID, err)
	}
	return nil
}
