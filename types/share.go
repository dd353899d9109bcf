package types

import "math/big"

// Share is one party's fragment of a secret-shared value together with
// its authentication tag. A Share is meaningless in isolation: the
// secret only exists as the sum mod p of the corresponding shares held
// by all parties, and the MAC shares sum to macKey * secret.
type Share struct {
	Value *big.Int
	Mac   *big.Int
	Owner int
}

// Copy returns a deep copy of the share.
func (s Share) Copy() Share {
	return Share{
		Value: new(big.Int).Set(s.Value),
		Mac:   new(big.Int).Set(s.Mac),
		Owner: s.Owner,
	}
}

// Triple is one party's share of a Beaver triple (a, b, c) with
// c == a*b across all parties. A triple backs exactly one
// multiplication and is discarded afterwards.
type Triple struct {
	A Share
	B Share
	C Share
}

// Mask is one party's share of an authenticated random input mask.
// Clear is only set on the mask owner's copy.
type Mask struct {
	Share Share
	Clear *big.Int
}

// Result is a reconstructed value together with a transcript digest
// covering the opened shares and the successful MAC check.
type Result struct {
	Value *big.Int
	Proof []byte
}
