package field

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"
)

// Field implements modular arithmetic over a fixed prime modulus p.
// All methods return values reduced to [0, p).
type Field struct {
	p        *big.Int
	byteSize int
}

// New creates a field over the given prime modulus.
func New(p *big.Int) (*Field, error) {
	if p == nil || p.Sign() <= 0 {
		return nil, xerrors.Errorf("invalid modulus")
	}
	return &Field{
		p:        new(big.Int).Set(p),
		byteSize: (p.BitLen() + 7) / 8,
	}, nil
}

// Modulus returns a copy of the field modulus.
func (f *Field) Modulus() *big.Int {
	return new(big.Int).Set(f.p)
}

// ByteSize returns the fixed wire width of one encoded element.
func (f *Field) ByteSize() int {
	return f.byteSize
}

// Reduce maps x into [0, p).
func (f *Field) Reduce(x *big.Int) *big.Int {
	z := new(big.Int).Mod(x, f.p)
	if z.Sign() < 0 {
		z.Add(z, f.p)
	}
	return z
}

// Add returns a + b mod p
func (f *Field) Add(a, b *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	return sum.Mod(sum, f.p)
}

// Sub returns a - b mod p
func (f *Field) Sub(a, b *big.Int) *big.Int {
	dif := new(big.Int).Sub(a, b)
	if dif.Sign() < 0 {
		dif.Add(dif, f.p)
	}
	return dif.Mod(dif, f.p)
}

// Mul returns a * b mod p
func (f *Field) Mul(a, b *big.Int) *big.Int {
	prod := new(big.Int).Mul(a, b)
	return prod.Mod(prod, f.p)
}

// Neg returns -a mod p
func (f *Field) Neg(a *big.Int) *big.Int {
	return f.Sub(big.NewInt(0), a)
}

// Inv returns a^-1 mod p. It fails on a == 0.
func (f *Field) Inv(a *big.Int) (*big.Int, error) {
	if f.Reduce(a).Sign() == 0 {
		return nil, xerrors.Errorf("no inverse for zero")
	}
	inv := new(big.Int).ModInverse(f.Reduce(a), f.p)
	if inv == nil {
		return nil, xerrors.Errorf("no inverse for %s", a.String())
	}
	return inv, nil
}

// Rand samples a uniformly random field element.
func (f *Field) Rand() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, f.p)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Contains reports whether x is a canonical element in [0, p).
func (f *Field) Contains(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(f.p) < 0
}

// Encode writes x as fixed-width big-endian bytes.
func (f *Field) Encode(x *big.Int) []byte {
	b := make([]byte, f.byteSize)
	z := f.Reduce(x)
	z.FillBytes(b)
	return b
}

// Decode parses fixed-width big-endian bytes into a field element. It
// rejects buffers of the wrong width and values outside [0, p); a peer
// sending such bytes is misbehaving.
func (f *Field) Decode(b []byte) (*big.Int, error) {
	if len(b) != f.byteSize {
		return nil, xerrors.Errorf("bad element width %d, want %d", len(b), f.byteSize)
	}
	x := new(big.Int).SetBytes(b)
	if x.Cmp(f.p) >= 0 {
		return nil, xerrors.Errorf("element out of field range")
	}
	return x, nil
}
