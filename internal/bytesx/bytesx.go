// Package bytesx provides the fixed-length byte-container primitives the
// rest of the module builds wire layouts from. Every cryptographic value in
// this system has a byte length known ahead of time; there is no run-time
// length field anywhere in a handshake message. Lengths are expressed as
// named constants next to each wire type (Go has no type-level natural
// numbers), and CheckLayout is the const-assertion spec.md §9 asks for:
// a single place that fails loudly if a layout's parts stop summing to its
// declared total.
//
// Two trait levels exist informally: raw containers, where any byte string
// of the right length is valid (an HMAC tag, a ciphertext, an AEAD key) and
// decoding is infallible; and validated containers, where decoding can fail
// (a compressed curve point that isn't canonical). Concat2/Concat3/Concat4
// below compose either kind into a container whose length is the sum of its
// parts and whose encoding is the concatenation of its parts' encodings.
package bytesx

import (
	"errors"
	"fmt"
)

// ErrLength is returned when a buffer's length does not match the length a
// codec function expected.
var ErrLength = errors.New("bytesx: incorrect length")

// Sized is implemented by every fixed-length wire value.
type Sized interface {
	Len() int
}

// Bytesable is a Sized value that can serialize itself.
type Bytesable interface {
	Sized
	Bytes() []byte
}

// Concat concatenates byte slices into a single buffer. It never mutates
// its arguments.
func Concat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Split divides buf into contiguous slices of the given lengths. It is the
// left inverse of Concat: for a == Concat(parts...), Split(a, lens...)
// recovers parts, provided lens matches their lengths. Returns ErrLength if
// buf's total length doesn't match the sum of lens.
func Split(buf []byte, lens ...int) ([][]byte, error) {
	total := 0
	for _, l := range lens {
		total += l
	}
	if len(buf) != total {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(buf), total)
	}
	out := make([][]byte, len(lens))
	off := 0
	for i, l := range lens {
		out[i] = buf[off : off+l]
		off += l
	}
	return out, nil
}

// CheckLayout panics if the declared parts of a wire structure don't sum to
// its declared total length. Call it from a package-level var block next to
// a wire struct's byte-offset constants:
//
//	var _ = bytesx.CheckLayout("Message0", lenMessage0, curve.CompressedLen, kem.PublicKeyLen, tagLen)
//
// This is the compile-adjacent assertion spec.md §9 calls for in languages
// without type-level length arithmetic: it can't run before compilation,
// but it runs before any test or binary using the package does anything
// else, and it never passes silently if a layout is wrong.
func CheckLayout(name string, total int, parts ...int) int {
	sum := 0
	for _, p := range parts {
		sum += p
	}
	if sum != total {
		panic(fmt.Sprintf("bytesx: %s layout mismatch: parts sum to %d, want %d", name, sum, total))
	}
	return total
}

// Concat2 is a container of two sub-containers, concatenated in order. Its
// length is always First.Len() + Second.Len().
type Concat2[A, B Bytesable] struct {
	First  A
	Second B
}

func (c Concat2[A, B]) Len() int      { return c.First.Len() + c.Second.Len() }
func (c Concat2[A, B]) Bytes() []byte { return Concat(c.First.Bytes(), c.Second.Bytes()) }

// DecodeConcat2 splits buf into two parts of the given lengths and decodes
// each with the supplied decoder.
func DecodeConcat2[A, B Bytesable](buf []byte, lenA, lenB int,
	decodeA func([]byte) (A, error), decodeB func([]byte) (B, error)) (Concat2[A, B], error) {
	var zero Concat2[A, B]
	parts, err := Split(buf, lenA, lenB)
	if err != nil {
		return zero, err
	}
	a, err := decodeA(parts[0])
	if err != nil {
		return zero, err
	}
	b, err := decodeB(parts[1])
	if err != nil {
		return zero, err
	}
	return Concat2[A, B]{First: a, Second: b}, nil
}

// Concat3 is a container of three sub-containers, concatenated in order.
type Concat3[A, B, C Bytesable] struct {
	First  A
	Second B
	Third  C
}

func (c Concat3[A, B, C]) Len() int {
	return c.First.Len() + c.Second.Len() + c.Third.Len()
}

func (c Concat3[A, B, C]) Bytes() []byte {
	return Concat(c.First.Bytes(), c.Second.Bytes(), c.Third.Bytes())
}

// DecodeConcat3 splits buf into three parts of the given lengths and decodes
// each with the supplied decoder.
func DecodeConcat3[A, B, C Bytesable](buf []byte, lenA, lenB, lenC int,
	decodeA func([]byte) (A, error), decodeB func([]byte) (B, error), decodeC func([]byte) (C, error)) (Concat3[A, B, C], error) {
	var zero Concat3[A, B, C]
	parts, err := Split(buf, lenA, lenB, lenC)
	if err != nil {
		return zero, err
	}
	a, err := decodeA(parts[0])
	if err != nil {
		return zero, err
	}
	b, err := decodeB(parts[1])
	if err != nil {
		return zero, err
	}
	c, err := decodeC(parts[2])
	if err != nil {
		return zero, err
	}
	return Concat3[A, B, C]{First: a, Second: b, Third: c}, nil
}

// Concat4 is a container of four sub-containers, concatenated in order.
type Concat4[A, B, C, D Bytesable] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

func (c Concat4[A, B, C, D]) Len() int {
	return c.First.Len() + c.Second.Len() + c.Third.Len() + c.Fourth.Len()
}

func (c Concat4[A, B, C, D]) Bytes() []byte {
	return Concat(c.First.Bytes(), c.Second.Bytes(), c.Third.Bytes(), c.Fourth.Bytes())
}

// DecodeConcat4 splits buf into four parts of the given lengths and decodes
// each with the supplied decoder.
func DecodeConcat4[A, B, C, D Bytesable](buf []byte, lenA, lenB, lenC, lenD int,
	decodeA func([]byte) (A, error), decodeB func([]byte) (B, error),
	decodeC func([]byte) (C, error), decodeD func([]byte) (D, error)) (Concat4[A, B, C, D], error) {
	var zero Concat4[A, B, C, D]
	parts, err := Split(buf, lenA, lenB, lenC, lenD)
	if err != nil {
		return zero, err
	}
	a, err := decodeA(parts[0])
	if err != nil {
		return zero, err
	}
	b, err := decodeB(parts[1])
	if err != nil {
		return zero, err
	}
	c, err := decodeC(parts[2])
	if err != nil {
		return zero, err
	}
	d, err := decodeD(parts[3])
	if err != nil {
		return zero, err
	}
	return Concat4[A, B, C, D]{First: a, Second: b, Third: c, Fourth: d}, nil
}

// Raw16 is a raw 16-byte container: any byte string of this length is valid
// (an AEAD tag). Decoding is infallible.
type Raw16 [16]byte

func (r Raw16) Len() int      { return 16 }
func (r Raw16) Bytes() []byte { return r[:] }

// DecodeRaw16 is infallible for correctly-sized input and matches ErrLength
// otherwise, since the framing layer is expected to size-check first.
func DecodeRaw16(buf []byte) (Raw16, error) {
	var r Raw16
	if len(buf) != 16 {
		return r, fmt.Errorf("%w: got %d bytes, want 16", ErrLength, len(buf))
	}
	copy(r[:], buf)
	return r, nil
}

// Raw32 is a raw 32-byte container: any byte string of this length is valid.
type Raw32 [32]byte

func (r Raw32) Len() int      { return 32 }
func (r Raw32) Bytes() []byte { return r[:] }

func DecodeRaw32(buf []byte) (Raw32, error) {
	var r Raw32
	if len(buf) != 32 {
		return r, fmt.Errorf("%w: got %d bytes, want 32", ErrLength, len(buf))
	}
	copy(r[:], buf)
	return r, nil
}
