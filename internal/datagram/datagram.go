// Package datagram implements the fixed-MTU framed message codec of
// spec.md §4.6, grounded on internal/cipher.Cipher for the record AEAD and
// internal/handshake.RecordAssociatedData for the associated data, with the
// multi-packet continuation scheme ported from vru-transport's framed
// datagram layer (original_source/vru-transport/src/protocol) re-expressed
// over runtime-checked byte slices rather than typenum sizes.
package datagram

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
)

// Packet size constants (spec.md §4.6).
const (
	Full    = 1280
	Tag     = 16
	Payload = Full - Tag
)

// Discriminant tags the first byte of a message's first packet.
type Discriminant byte

const (
	TagArbitrary Discriminant = 0
	TagInvoices  Discriminant = 1 // reserved; not yet framed
	TagContract  Discriminant = 2
	TagClose     Discriminant = 3
)

const (
	contractInvoiceIDLen  = 32
	contractTimestampLen  = 8
	contractSigECLen      = 64
	contractSigLatticeLen = 2701
	contractBodyLen       = contractInvoiceIDLen + contractTimestampLen + contractSigECLen + contractSigLatticeLen

	closeSecretLen = 32

	headerLen = 1 + 4 // disc ‖ len_be32, for the Arbitrary variant
)

var (
	// ErrUnknownDiscriminant is returned when a decoded first byte does
	// not match a known message variant.
	ErrUnknownDiscriminant = errors.New("datagram: unknown discriminant")
	// ErrReserved is returned when decoding encounters the Invoices
	// variant, which spec.md §4.6 marks reserved and not yet framed.
	ErrReserved = errors.New("datagram: invoices variant not yet framed")
	// ErrTooLarge is returned when an Arbitrary body's declared length
	// does not fit in the packets passed to Open.
	ErrTooLarge = errors.New("datagram: declared length too large")
)

// Message is one of the four variants spec.md §4.6 frames.
type Message struct {
	Tag Discriminant

	// Arbitrary
	Body []byte

	// Contract
	InvoiceID  [contractInvoiceIDLen]byte
	Timestamp  uint64
	SigEC      [contractSigECLen]byte
	SigLattice [contractSigLatticeLen]byte

	// Close
	Secret [closeSecretLen]byte
}

// Encode lays a Message out on the wire in its pre-encryption form: the
// discriminant byte followed by the variant's fields, zero-padded up to a
// multiple of Payload.
func Encode(msg Message) ([]byte, error) {
	switch msg.Tag {
	case TagArbitrary:
		body := headerLen + len(msg.Body)
		n := ceilToPayload(body)
		buf := make([]byte, n)
		buf[0] = byte(TagArbitrary)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(msg.Body)))
		copy(buf[headerLen:], msg.Body)
		return buf, nil

	case TagContract:
		buf := make([]byte, ceilToPayload(1+contractBodyLen))
		buf[0] = byte(TagContract)
		off := 1
		copy(buf[off:], msg.InvoiceID[:])
		off += contractInvoiceIDLen
		binary.BigEndian.PutUint64(buf[off:off+contractTimestampLen], msg.Timestamp)
		off += contractTimestampLen
		copy(buf[off:], msg.SigEC[:])
		off += contractSigECLen
		copy(buf[off:], msg.SigLattice[:])
		return buf, nil

	case TagClose:
		buf := make([]byte, ceilToPayload(1+closeSecretLen))
		buf[0] = byte(TagClose)
		copy(buf[1:], msg.Secret[:])
		return buf, nil

	case TagInvoices:
		return nil, ErrReserved

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, msg.Tag)
	}
}

// Seal encodes msg and seals it into one or more fixed-width ciphertext
// packets under send, each sealed with ad as associated data and consuming
// one nonce.
func Seal(send *cipher.Cipher, ad []byte, msg Message) ([][]byte, error) {
	plaintext, err := Encode(msg)
	if err != nil {
		return nil, err
	}

	var packets [][]byte
	for off := 0; off < len(plaintext); off += Payload {
		end := off + Payload
		chunk := plaintext[off:end]
		ciphertext, err := send.Seal(ad, chunk)
		if err != nil {
			return nil, fmt.Errorf("datagram: seal packet %d: %w", off/Payload, err)
		}
		packets = append(packets, ciphertext)
	}
	return packets, nil
}

// Open decrypts the first packet of an incoming message, determines from
// its discriminant and declared length how many continuation packets
// (already available in full, as packets[1:]) to consume, and returns the
// decoded Message.
func Open(receive *cipher.Cipher, ad []byte, packets [][]byte) (Message, error) {
	if len(packets) == 0 {
		return Message{}, errors.New("datagram: no packets")
	}

	first, err := receive.Open(ad, packets[0])
	if err != nil {
		return Message{}, fmt.Errorf("datagram: open packet 0: %w", err)
	}
	if len(first) == 0 {
		return Message{}, fmt.Errorf("%w: empty packet", ErrUnknownDiscriminant)
	}

	tag := Discriminant(first[0])
	switch tag {
	case TagArbitrary:
		if len(first) < headerLen {
			return Message{}, fmt.Errorf("%w: short header", ErrUnknownDiscriminant)
		}
		declared := int(binary.BigEndian.Uint32(first[1:5]))
		total := headerLen + declared
		if total > len(packets)*Payload {
			return Message{}, fmt.Errorf("%w: %d bytes declared, %d packets supplied", ErrTooLarge, declared, len(packets))
		}

		full, err := assembleBody(receive, ad, first, declared+headerLen, packets[1:])
		if err != nil {
			return Message{}, err
		}
		return Message{Tag: TagArbitrary, Body: full[headerLen : headerLen+declared]}, nil

	case TagContract:
		full, err := assembleBody(receive, ad, first, 1+contractBodyLen, packets[1:])
		if err != nil {
			return Message{}, err
		}
		var m Message
		m.Tag = TagContract
		off := 1
		copy(m.InvoiceID[:], full[off:off+contractInvoiceIDLen])
		off += contractInvoiceIDLen
		m.Timestamp = binary.BigEndian.Uint64(full[off : off+contractTimestampLen])
		off += contractTimestampLen
		copy(m.SigEC[:], full[off:off+contractSigECLen])
		off += contractSigECLen
		copy(m.SigLattice[:], full[off:off+contractSigLatticeLen])
		return m, nil

	case TagClose:
		full, err := assembleBody(receive, ad, first, 1+closeSecretLen, packets[1:])
		if err != nil {
			return Message{}, err
		}
		var m Message
		m.Tag = TagClose
		copy(m.Secret[:], full[1:1+closeSecretLen])
		return m, nil

	case TagInvoices:
		return Message{}, ErrReserved

	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, tag)
	}
}

// assembleBody returns the decrypted message body, at least declaredLen
// bytes long (whole packets, so callers slice out the fields they need),
// decrypting as many continuation packets as needed beyond the first.
func assembleBody(receive *cipher.Cipher, ad []byte, first []byte, declaredLen int, continuations [][]byte) ([]byte, error) {
	if declaredLen <= len(first) {
		return first, nil
	}

	full := append([]byte{}, first...)
	need := declaredLen - len(first)
	for i := 0; need > 0; i++ {
		if i >= len(continuations) {
			return nil, fmt.Errorf("datagram: need %d more continuation bytes, no packets left", need)
		}
		chunk, err := receive.Open(ad, continuations[i])
		if err != nil {
			return nil, fmt.Errorf("datagram: open continuation %d: %w", i, err)
		}
		full = append(full, chunk...)
		need -= len(chunk)
	}
	return full, nil
}

func ceilToPayload(n int) int {
	if n <= 0 {
		return Payload
	}
	blocks := (n + Payload - 1) / Payload
	return blocks * Payload
}
