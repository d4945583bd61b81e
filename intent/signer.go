package intent

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs the keccak256 hash of an intent's payload with a
// secp256k1 key. It is a development signer, not a custody solution.
type KeySigner struct {
	key *ecdsa.PrivateKey
	pub string
}

// NewKeySigner loads a hex private key, or generates one when hexKey is empty.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		key, err = crypto.GenerateKey()
	} else {
		key, err = crypto.HexToECDSA(hexKey)
	}
	if err != nil {
		return nil, fmt.Errorf("intent: signing key: %w", err)
	}
	return &KeySigner{
		key: key,
		pub: hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)),
	}, nil
}

// PublicKey is the hex encoded uncompressed public key.
func (s *KeySigner) PublicKey() string { return s.pub }

func (s *KeySigner) Sign(ctx context.Context, in Intent) (SignedIntent, error) {
	if err := ctx.Err(); err != nil {
		return SignedIntent{}, err
	}
	payload, err := in.Payload()
	if err != nil {
		return SignedIntent{}, err
	}
	hash := crypto.Keccak256Hash(payload)
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return SignedIntent{}, err
	}
	return SignedIntent{
		Intent:    in,
		Signature: hex.EncodeToString(sig),
		PublicKey: s.pub,
	}, nil
}

// Verify checks si's signature against its embedded public key.
func Verify(si SignedIntent) (bool, error) {
	payload, err := si.Intent.Payload()
	if err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(si.Signature)
	if err != nil {
		return false, fmt.Errorf("intent: signature: %w", err)
	}
	pub, err := hex.DecodeString(si.PublicKey)
	if err != nil {
		return false, fmt.Errorf("intent: public key: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return false, nil
	}
	hash := crypto.Keccak256Hash(payload)
	return crypto.VerifySignature(pub, hash.Bytes(), sig[:crypto.RecoveryIDOffset]), nil
}
