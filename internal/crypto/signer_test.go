package crypto

import (
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func TestNewSignerRejectsBadKeys(t *testing.T) {
	for _, bad := range []string{"", "zz", "59c6"} {
		if _, err := NewSigner(bad); err == nil {
			t.Errorf("NewSigner(%q): expected error", bad)
		}
	}
}

func TestNewSignerAcceptsPrefixedKey(t *testing.T) {
	plain, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}
	prefixed, err := NewSigner("0x" + testKey)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Address() != prefixed.Address() {
		t.Errorf("addresses differ: %s vs %s", plain.Address(), prefixed.Address())
	}
	if !plain.PlayerID().Equal(prefixed.PlayerID()) {
		t.Errorf("player ids differ: %v vs %v", plain.PlayerID(), prefixed.PlayerID())
	}
}

func TestPlayerIDDerivation(t *testing.T) {
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	// The id is the first 16 bytes of keccak256 over the compressed public
	// key, read as two little-endian limbs.
	pub, err := hex.DecodeString(s.PublicKeyHex())
	if err != nil {
		t.Fatal(err)
	}
	if len(pub) != 33 {
		t.Fatalf("compressed pubkey length = %d, want 33", len(pub))
	}
	h := ethcrypto.Keccak256(pub)
	want0 := uint64(0)
	want1 := uint64(0)
	for i := 7; i >= 0; i-- {
		want0 = want0<<8 | uint64(h[i])
		want1 = want1<<8 | uint64(h[8+i])
	}
	got := s.PlayerID()
	if got[0] != want0 || got[1] != want1 {
		t.Errorf("player id = %v, want [%d %d]", got, want0, want1)
	}
}

func TestCommandDigestIsLittleEndian(t *testing.T) {
	cmd := []uint64{0x0102030405060708, 0x1112131415161718}
	buf := []byte{
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x18, 0x17, 0x16, 0x15, 0x14, 0x13, 0x12, 0x11,
	}
	want := ethcrypto.Keccak256(buf)
	got := CommandDigest(cmd)
	if hex.EncodeToString(got) != hex.EncodeToString(want) {
		t.Errorf("digest = %x, want %x", got, want)
	}
}

func TestSignCommandIsRecoverable(t *testing.T) {
	s, err := NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	cmd := []uint64{7<<16 | 4<<8 | 5, 1, 1, 2_000_000_000, 100}
	sigHex, err := s.SignCommand(cmd)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	pub, err := ethcrypto.SigToPub(CommandDigest(cmd), sig)
	if err != nil {
		t.Fatal(err)
	}
	if addr := ethcrypto.PubkeyToAddress(*pub); addr != s.Address() {
		t.Errorf("recovered address %s, want %s", addr, s.Address())
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptKey(testKey, "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecryptKey(encrypted, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if got != testKey {
		t.Errorf("decrypted key = %q, want %q", got, testKey)
	}

	if _, err := DecryptKey(encrypted, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	if err != nil {
		t.Fatal(err)
	}
	if got != testKey {
		t.Errorf("LoadKey = %q, want %q", got, testKey)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error when no key source configured")
	}
}
