package crypto

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	hash := common.BytesToHash(ethcrypto.Keccak256([]byte("payload")))
	sig, err := SignHash(key, hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("unexpected recovery byte %d", sig[64])
	}
	got, err := RecoverSigner(hash, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != key.PubKey().Address() {
		t.Fatalf("recovered %s, want %s", got.Hex(), key.PubKey().Address().Hex())
	}

	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	if got, err := RecoverSigner(hash, raw); err != nil || got != key.PubKey().Address() {
		t.Fatalf("0/1 recovery byte not accepted: %v", err)
	}
}

func TestRecoverRejectsMalformedSignatures(t *testing.T) {
	key, _ := GeneratePrivateKey()
	hash := common.BytesToHash(ethcrypto.Keccak256([]byte("payload")))
	sig, _ := SignHash(key, hash)

	badV := append([]byte(nil), sig...)
	badV[64] = 29

	// Flip s to n - s: same signer mathematically, but high-S.
	highS := append([]byte(nil), sig...)
	s := new(big.Int).SetBytes(sig[32:64])
	flipped := new(big.Int).Sub(ethcrypto.S256().Params().N, s)
	flipped.FillBytes(highS[32:64])
	highS[64] = 55 - highS[64]

	cases := map[string][]byte{
		"empty":     nil,
		"short":     sig[:64],
		"long":      append(append([]byte(nil), sig...), 0),
		"bad v":     badV,
		"high s":    highS,
		"zeroed rs": append(make([]byte, 64), 27),
	}
	for name, candidate := range cases {
		if _, err := RecoverSigner(hash, candidate); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}
