package kem

import "testing"

func seedOf(n int, v byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v + byte(i)
	}
	return out
}

func TestGenerateKeyPairDeterministic(t *testing.T) {
	var seed [PairSeedLen]byte
	copy(seed[:], seedOf(PairSeedLen, 1))

	pk1, _ := GenerateKeyPair(seed)
	pk2, _ := GenerateKeyPair(seed)

	if pk1.Hash() != pk2.Hash() {
		t.Error("GenerateKeyPair is not deterministic for a fixed seed")
	}
}

func TestEncapsulateDecapsulateRoundTrip(t *testing.T) {
	var pairSeed [PairSeedLen]byte
	copy(pairSeed[:], seedOf(PairSeedLen, 5))
	pk, sk := GenerateKeyPair(pairSeed)

	var encSeed [EncapsulationSeedLen]byte
	copy(encSeed[:], seedOf(EncapsulationSeedLen, 9))

	ct, ss1 := Encapsulate(encSeed, pk)
	ss2 := Decapsulate(sk, ct)

	if ss1 != ss2 {
		t.Errorf("shared secret mismatch: %x != %x", ss1, ss2)
	}
}

func TestDecapsulateImplicitRejectionIsStable(t *testing.T) {
	var pairSeed [PairSeedLen]byte
	copy(pairSeed[:], seedOf(PairSeedLen, 3))
	_, sk := GenerateKeyPair(pairSeed)

	var badCiphertext [CiphertextLen]byte
	copy(badCiphertext[:], seedOf(CiphertextLen, 0xAB))

	ss1 := Decapsulate(sk, badCiphertext)
	ss2 := Decapsulate(sk, badCiphertext)

	if ss1 != ss2 {
		t.Error("implicit rejection output not stable across repeated calls")
	}
}

func TestDecodePublicKeyRoundTrip(t *testing.T) {
	var pairSeed [PairSeedLen]byte
	copy(pairSeed[:], seedOf(PairSeedLen, 7))
	pk, _ := GenerateKeyPair(pairSeed)

	decoded, err := DecodePublicKey(pk.Bytes())
	if err != nil {
		t.Fatalf("DecodePublicKey() error = %v", err)
	}
	if decoded.Hash() != pk.Hash() {
		t.Error("DecodePublicKey round-trip hash mismatch")
	}
}

func TestDecodePublicKeyRejectsWrongLength(t *testing.T) {
	if _, err := DecodePublicKey(make([]byte, PublicKeyLen-1)); err == nil {
		t.Error("expected error for short public key")
	}
}
