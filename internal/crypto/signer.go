// Package crypto provides command signing and key management for the rollup
// ledger RPC. Transactions are u64 command word arrays signed with a
// secp256k1 key; the ledger derives the submitting player id from the
// public key.
package crypto

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// Signer signs ledger command words with a secp256k1 private key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	playerID   domain.PlayerID
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key
// (with or without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: %w: %v", domain.ErrInvalidKey, err)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
	s.playerID = derivePlayerID(&pk.PublicKey)
	return s, nil
}

// Address returns the Ethereum-style address of the signing key, used for
// operator-facing logs only.
func (s *Signer) Address() common.Address {
	return s.address
}

// PlayerID returns the two-limb account id the ledger derives from the
// signer's public key. Orders owned by this id are the client's own.
func (s *Signer) PlayerID() domain.PlayerID {
	return s.playerID
}

// PublicKeyHex returns the compressed public key as hex, as carried in the
// transaction envelope.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(ethcrypto.CompressPubkey(&s.privateKey.PublicKey))
}

// SignCommand signs the command word array and returns the 65-byte
// recoverable signature as hex. The digest is the keccak256 of the words in
// little-endian byte order, matching the ledger's verification circuit.
func (s *Signer) SignCommand(cmd []uint64) (string, error) {
	digest := CommandDigest(cmd)
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign command: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// CommandDigest hashes a command word array for signing.
func CommandDigest(cmd []uint64) []byte {
	buf := make([]byte, 8*len(cmd))
	for i, w := range cmd {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return ethcrypto.Keccak256(buf)
}

// derivePlayerID folds the keccak256 of the compressed public key into the
// ledger's two-limb account id.
func derivePlayerID(pub *ecdsa.PublicKey) domain.PlayerID {
	h := ethcrypto.Keccak256(ethcrypto.CompressPubkey(pub))
	return domain.PlayerID{
		binary.LittleEndian.Uint64(h[0:8]),
		binary.LittleEndian.Uint64(h[8:16]),
	}
}
