package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakeledger/storage"
	"stakeledger/storage/trie"
)

// headKey is stored outside the trie and points at the last committed root.
var headKey = []byte("stakeledger/head")

type headRecord struct {
	Root   common.Hash
	Height uint64
}

// Manager reads and writes rlp-encoded ledger state in a Merkle Patricia trie.
// Every mutation lands in the in-memory trie first; Commit persists it and
// advances the height. Checkpoint and Revert give the all-or-nothing
// behaviour each ledger operation relies on.
//
// Manager is not safe for concurrent use; the staking engine serialises
// access.
type Manager struct {
	db     storage.Database
	trie   *trie.Trie
	height uint64
}

// Checkpoint is an opaque rollback point produced by Manager.Checkpoint.
type Checkpoint struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie. The
// manager starts at height zero and does not persist a head record until the
// first Commit.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{db: tr.Store(), trie: tr}
}

// Open loads the last committed head from db, or starts from the empty trie
// when the database is fresh.
func Open(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	var head headRecord
	raw, err := db.Get(headKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("state: read head: %w", err)
	default:
		if err := rlp.DecodeBytes(raw, &head); err != nil {
			return nil, fmt.Errorf("state: decode head: %w", err)
		}
	}
	var root []byte
	if head.Root != (common.Hash{}) {
		root = head.Root.Bytes()
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("state: open trie: %w", err)
	}
	return &Manager{db: db, trie: tr, height: head.Height}, nil
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return kvKey(buf)
}

// Checkpoint captures the current uncommitted state.
func (m *Manager) Checkpoint() *Checkpoint {
	return &Checkpoint{trie: m.trie.Copy()}
}

// Revert discards every write made since cp was taken. A checkpoint may be
// reverted to more than once.
func (m *Manager) Revert(cp *Checkpoint) {
	if cp == nil || cp.trie == nil {
		return
	}
	m.trie = cp.trie.Copy()
}

// Commit persists pending writes, advances the height and records the new
// head so Open can resume from it.
func (m *Manager) Commit() (common.Hash, error) {
	next := m.height + 1
	root, err := m.trie.Commit(m.trie.Root(), next)
	if err != nil {
		return common.Hash{}, fmt.Errorf("state: commit trie: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&headRecord{Root: root, Height: next})
	if err != nil {
		return common.Hash{}, err
	}
	if err := m.db.Put(headKey, encoded); err != nil {
		return common.Hash{}, fmt.Errorf("state: write head: %w", err)
	}
	m.height = next
	return root, nil
}

// Hash returns the root of the current state including uncommitted writes.
func (m *Manager) Hash() common.Hash {
	return m.trie.Hash()
}

// Root returns the last committed root.
func (m *Manager) Root() common.Hash {
	return m.trie.Root()
}

// Height returns the number of commits applied so far.
func (m *Manager) Height() uint64 {
	return m.height
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the trie.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// out. The boolean reports whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(kvKey(key))
}

// KVAppend appends value to the RLP-encoded byte slice list stored under key.
// Duplicates are ignored to keep the index deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.trie.Get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(hashed, encoded)
}

// KVGetList decodes the RLP list stored under key into out, which must be a
// pointer to a slice. A missing key yields an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// SetRoleHolder makes addr the sole holder of role, replacing any previous
// holder.
func (m *Manager) SetRoleHolder(role string, addr common.Address) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return err
	}
	return m.trie.Update(roleKey(trimmed), encoded)
}

// RoleHolder returns the holder of role and whether one has been assigned.
func (m *Manager) RoleHolder(role string) (common.Address, bool, error) {
	data, err := m.trie.Get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return common.Address{}, false, err
	}
	if len(data) == 0 {
		return common.Address{}, false, nil
	}
	var addr common.Address
	if err := rlp.DecodeBytes(data, &addr); err != nil {
		return common.Address{}, false, err
	}
	return addr, true, nil
}

// HasRole reports whether addr currently holds role. Read errors count as
// "no", which keeps privileged checks closed on failure.
func (m *Manager) HasRole(role string, addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	holder, ok, err := m.RoleHolder(role)
	if err != nil || !ok {
		return false
	}
	return holder == addr
}
