package preprocessing

import (
	"math/big"

	"github.com/mindhaven/mpcnet/types"
)

// split writes v as n additive shares: n-1 uniformly random elements
// plus the remainder.
func (p *Preprocessing) split(v *big.Int, n int) ([]*big.Int, error) {
	shares := make([]*big.Int, n)
	rest := p.field.Reduce(v)
	for i := 0; i < n-1; i++ {
		r, err := p.field.Rand()
		if err != nil {
			return nil, err
		}
		shares[i] = r
		rest = p.field.Sub(rest, r)
	}
	shares[n-1] = rest
	return shares, nil
}

func (p *Preprocessing) dealerAlpha() (*big.Int, error) {
	p.macMu.Lock()
	defer p.macMu.Unlock()
	if p.alpha == nil {
		return nil, types.NewError(types.ProtocolError, "mac key not set up")
	}
	return p.alpha, nil
}

// GenerateTriples deals count authenticated multiplication triples.
// Dealer only: every party, the dealer included, ends with its
// additive share of (a, b, c = a*b) and of the three MACs.
func (p *Preprocessing) GenerateTriples(count int) error {
	p.genMu.Lock()
	defer p.genMu.Unlock()

	alpha, err := p.dealerAlpha()
	if err != nil {
		return err
	}
	n := p.message.N()
	self := p.message.Self()

	wire := make([][]types.TripleWire, n)
	own := make([]interface{}, 0, count)

	for k := 0; k < count; k++ {
		a, err := p.field.Rand()
		if err != nil {
			return types.WrapError(types.CryptoError, err, "sample triple")
		}
		b, err := p.field.Rand()
		if err != nil {
			return types.WrapError(types.CryptoError, err, "sample triple")
		}
		c := p.field.Mul(a, b)

		parts := [6]*big.Int{a, b, c,
			p.field.Mul(alpha, a), p.field.Mul(alpha, b), p.field.Mul(alpha, c)}
		var splits [6][]*big.Int
		for i, v := range parts {
			s, err := p.split(v, n)
			if err != nil {
				return types.WrapError(types.CryptoError, err, "split triple")
			}
			splits[i] = s
		}

		for j := 0; j < n; j++ {
			w := types.TripleWire{
				A:    p.field.Encode(splits[0][j]),
				B:    p.field.Encode(splits[1][j]),
				C:    p.field.Encode(splits[2][j]),
				MacA: p.field.Encode(splits[3][j]),
				MacB: p.field.Encode(splits[4][j]),
				MacC: p.field.Encode(splits[5][j]),
			}
			if j == self {
				own = append(own, types.Triple{
					A: types.Share{Value: splits[0][j], Mac: splits[3][j], Owner: j},
					B: types.Share{Value: splits[1][j], Mac: splits[4][j], Owner: j},
					C: types.Share{Value: splits[2][j], Mac: splits[5][j], Owner: j},
				})
				continue
			}
			wire[j] = append(wire[j], w)
		}
	}

	for j := 0; j < n; j++ {
		if j == self {
			continue
		}
		err := p.message.Unicast(j, types.TripleBatchMessage{Batch: wire[j]})
		if err != nil {
			return err
		}
	}
	p.triples.add(own)
	return nil
}

// GenerateBits deals count authenticated random bits.
func (p *Preprocessing) GenerateBits(count int) error {
	p.genMu.Lock()
	defer p.genMu.Unlock()

	alpha, err := p.dealerAlpha()
	if err != nil {
		return err
	}
	n := p.message.N()
	self := p.message.Self()

	wire := make([][]types.BitWire, n)
	own := make([]interface{}, 0, count)

	for k := 0; k < count; k++ {
		r, err := p.field.Rand()
		if err != nil {
			return types.WrapError(types.CryptoError, err, "sample bit")
		}
		bit := new(big.Int).And(r, big.NewInt(1))

		vals, err := p.split(bit, n)
		if err != nil {
			return types.WrapError(types.CryptoError, err, "split bit")
		}
		macs, err := p.split(p.field.Mul(alpha, bit), n)
		if err != nil {
			return types.WrapError(types.CryptoError, err, "split bit mac")
		}

		for j := 0; j < n; j++ {
			if j == self {
				own = append(own, types.Share{Value: vals[j], Mac: macs[j], Owner: j})
				continue
			}
			wire[j] = append(wire[j], types.BitWire{
				Value: p.field.Encode(vals[j]),
				Mac:   p.field.Encode(macs[j]),
			})
		}
	}

	for j := 0; j < n; j++ {
		if j == self {
			continue
		}
		err := p.message.Unicast(j, types.BitBatchMessage{Batch: wire[j]})
		if err != nil {
			return err
		}
	}
	p.bits.add(own)
	return nil
}

// GenerateMasks deals count authenticated input masks for one owner.
// The mask value in clear only travels to the owner.
func (p *Preprocessing) GenerateMasks(owner, count int) error {
	p.genMu.Lock()
	defer p.genMu.Unlock()

	alpha, err := p.dealerAlpha()
	if err != nil {
		return err
	}
	n := p.message.N()
	self := p.message.Self()

	wire := make([][]types.MaskWire, n)
	own := make([]interface{}, 0, count)

	for k := 0; k < count; k++ {
		r, err := p.field.Rand()
		if err != nil {
			return types.WrapError(types.CryptoError, err, "sample mask")
		}
		vals, err := p.split(r, n)
		if err != nil {
			return types.WrapError(types.CryptoError, err, "split mask")
		}
		macs, err := p.split(p.field.Mul(alpha, r), n)
		if err != nil {
			return types.WrapError(types.CryptoError, err, "split mask mac")
		}

		for j := 0; j < n; j++ {
			if j == self {
				mask := types.Mask{
					Share: types.Share{Value: vals[j], Mac: macs[j], Owner: j},
				}
				if owner == self {
					mask.Clear = new(big.Int).Set(r)
				}
				own = append(own, mask)
				continue
			}
			w := types.MaskWire{
				Value: p.field.Encode(vals[j]),
				Mac:   p.field.Encode(macs[j]),
			}
			if j == owner {
				w.Clear = p.field.Encode(r)
			}
			wire[j] = append(wire[j], w)
		}
	}

	for j := 0; j < n; j++ {
		if j == self {
			continue
		}
		err := p.message.Unicast(j, types.MaskBatchMessage{Owner: owner, Batch: wire[j]})
		if err != nil {
			return err
		}
	}
	p.maskPool(owner).add(own)
	return nil
}
