// Package multisig implements M-of-N secp256k1 identities whose signatures are
// validated by the wallet definition rather than a single private key.
package multisig

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakeledger/crypto"
)

var (
	ErrNoOwners         = errors.New("multisig: at least one owner required")
	ErrInvalidThreshold = errors.New("multisig: threshold must be between 1 and the number of owners")
	ErrDuplicateOwner   = errors.New("multisig: duplicate owner")
	ErrZeroOwner        = errors.New("multisig: owner must not be the zero address")
)

var addressDomain = []byte("stakeledger/multisig/v1")

// Wallet is an M-of-N multi-signature identity.
type Wallet struct {
	owners    []common.Address
	index     map[common.Address]struct{}
	threshold int
	address   common.Address
}

// NewWallet validates the owner set and derives the wallet address from it.
// Owners are stored in ascending order.
func NewWallet(owners []common.Address, threshold int) (*Wallet, error) {
	if len(owners) == 0 {
		return nil, ErrNoOwners
	}
	if threshold < 1 || threshold > len(owners) {
		return nil, ErrInvalidThreshold
	}
	sorted := append([]common.Address(nil), owners...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	index := make(map[common.Address]struct{}, len(sorted))
	for _, owner := range sorted {
		if owner == (common.Address{}) {
			return nil, ErrZeroOwner
		}
		if _, dup := index[owner]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOwner, owner.Hex())
		}
		index[owner] = struct{}{}
	}
	w := &Wallet{owners: sorted, index: index, threshold: threshold}
	w.address = deriveAddress(sorted, threshold)
	return w, nil
}

func deriveAddress(owners []common.Address, threshold int) common.Address {
	var word [8]byte
	binary.BigEndian.PutUint64(word[:], uint64(threshold))
	parts := [][]byte{addressDomain, word[:]}
	for _, owner := range owners {
		parts = append(parts, owner.Bytes())
	}
	return common.BytesToAddress(ethcrypto.Keccak256(parts...)[12:])
}

// Address returns the identity of the wallet.
func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) Threshold() int { return w.threshold }

// Owners returns a copy of the owner set in ascending order.
func (w *Wallet) Owners() []common.Address {
	return append([]common.Address(nil), w.owners...)
}

// IsValidSignature accepts the concatenation of at least threshold 65-byte
// owner signatures over hash, ordered by strictly ascending signer address.
func (w *Wallet) IsValidSignature(hash common.Hash, sig []byte) bool {
	if w == nil || len(sig) == 0 || len(sig)%crypto.SignatureLength != 0 {
		return false
	}
	count := len(sig) / crypto.SignatureLength
	if count < w.threshold {
		return false
	}
	var previous common.Address
	for i := 0; i < count; i++ {
		part := sig[i*crypto.SignatureLength : (i+1)*crypto.SignatureLength]
		signer, err := crypto.RecoverSigner(hash, part)
		if err != nil {
			return false
		}
		if i > 0 && bytes.Compare(signer[:], previous[:]) <= 0 {
			return false
		}
		if _, ok := w.index[signer]; !ok {
			return false
		}
		previous = signer
	}
	return true
}

// Combine orders individual owner signatures by signer address and joins
// them into a wallet signature.
func Combine(hash common.Hash, sigs ...[]byte) ([]byte, error) {
	type entry struct {
		signer common.Address
		sig    []byte
	}
	entries := make([]entry, 0, len(sigs))
	for _, sig := range sigs {
		signer, err := crypto.RecoverSigner(hash, sig)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{signer: signer, sig: sig})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].signer[:], entries[j].signer[:]) < 0
	})
	out := make([]byte, 0, len(entries)*crypto.SignatureLength)
	for i, e := range entries {
		if i > 0 && e.signer == entries[i-1].signer {
			return nil, fmt.Errorf("%w: %s signed twice", ErrDuplicateOwner, e.signer.Hex())
		}
		out = append(out, e.sig...)
	}
	return out, nil
}

// Registry maps contract identities to the signer that validates for them.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	signers map[common.Address]crypto.ContractSigner
}

func NewRegistry() *Registry {
	return &Registry{signers: make(map[common.Address]crypto.ContractSigner)}
}

// Register binds signer to identity, replacing any earlier binding.
func (r *Registry) Register(identity common.Address, signer crypto.ContractSigner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if signer == nil {
		delete(r.signers, identity)
		return
	}
	r.signers[identity] = signer
}

// RegisterWallet binds w under its derived address.
func (r *Registry) RegisterWallet(w *Wallet) {
	if w == nil {
		return
	}
	r.Register(w.Address(), w)
}

// Resolve returns the signer bound to identity, or nil.
func (r *Registry) Resolve(identity common.Address) crypto.ContractSigner {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signers[identity]
}
