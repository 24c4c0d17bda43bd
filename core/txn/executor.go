// Package txn runs ledger mutations as atomic, serialised transactions over
// the shared state manager.
package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/events"
	"stakeledger/core/state"
)

var errNilState = errors.New("txn: state not configured")

// Receipt describes a committed transaction.
type Receipt struct {
	Height uint64
	Root   common.Hash
	Events int
}

// Envelope wraps a committed event with the commit it belongs to.
type Envelope struct {
	Height  uint64
	Root    common.Hash
	Index   int
	Payload events.Event
}

// EventType satisfies events.Event by forwarding to the payload.
func (e Envelope) EventType() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

type frameKey struct{}

type frame struct {
	exec   *Executor
	buffer *events.Buffer
	depth  int
}

// Executor serialises top-level transactions. Each transaction runs against a
// checkpoint of the state manager: an error reverts every write made inside
// it, success commits the trie and then delivers the buffered events wrapped
// in an Envelope.
//
// Calls made with a context derived from a running transaction (for instance
// from a transfer receiver hook) execute nested: they take their own
// checkpoint and event mark but neither lock nor commit.
type Executor struct {
	mu      sync.Mutex
	state   *state.Manager
	emitter events.Emitter
}

func NewExecutor(manager *state.Manager) *Executor {
	return &Executor{state: manager, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the sink for committed events. Passing nil resets the
// emitter to a no-op implementation.
func (x *Executor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		x.emitter = events.NoopEmitter{}
		return
	}
	x.emitter = emitter
}

// State exposes the manager the executor guards. Reads made through it outside
// of Run are only consistent while no transaction is in flight.
func (x *Executor) State() *state.Manager { return x.state }

// Run executes fn atomically. The receipt is zero for nested calls.
func (x *Executor) Run(ctx context.Context, fn func(ctx context.Context) error) (Receipt, error) {
	if x == nil || x.state == nil {
		return Receipt{}, errNilState
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if parent := x.frameFrom(ctx); parent != nil {
		return Receipt{}, x.runNested(ctx, parent, fn)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	f := &frame{exec: x, buffer: &events.Buffer{}}
	cp := x.state.Checkpoint()
	if err := fn(context.WithValue(ctx, frameKey{}, f)); err != nil {
		x.state.Revert(cp)
		return Receipt{}, err
	}
	root, err := x.state.Commit()
	if err != nil {
		x.state.Revert(cp)
		return Receipt{}, fmt.Errorf("txn: commit: %w", err)
	}
	receipt := Receipt{Height: x.state.Height(), Root: root, Events: f.buffer.Len()}
	if sink, ok := ctx.Value(receiptKey{}).(*Receipt); ok && sink != nil {
		*sink = receipt
	}
	for i, evt := range f.buffer.Events() {
		x.emitter.Emit(Envelope{Height: receipt.Height, Root: root, Index: i, Payload: evt})
	}
	f.buffer.Truncate(0)
	return receipt, nil
}

// View runs fn under the executor lock. fn must only read; nested calls run
// directly against the in-flight state.
func (x *Executor) View(ctx context.Context, fn func(m *state.Manager) error) error {
	if x == nil || x.state == nil {
		return errNilState
	}
	if ctx != nil && x.frameFrom(ctx) != nil {
		return fn(x.state)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return fn(x.state)
}

func (x *Executor) runNested(ctx context.Context, parent *frame, fn func(ctx context.Context) error) error {
	cp := x.state.Checkpoint()
	mark := parent.buffer.Len()
	child := &frame{exec: x, buffer: parent.buffer, depth: parent.depth + 1}
	if err := fn(context.WithValue(ctx, frameKey{}, child)); err != nil {
		x.state.Revert(cp)
		parent.buffer.Truncate(mark)
		return err
	}
	return nil
}

func (x *Executor) frameFrom(ctx context.Context) *frame {
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok || f.exec != x {
		return nil
	}
	return f
}

// Emit buffers evt on the transaction carried by ctx. Events raised outside
// a transaction are dropped.
func Emit(ctx context.Context, evt events.Event) {
	if ctx == nil || evt == nil {
		return
	}
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		f.buffer.Emit(evt)
	}
}

type receiptKey struct{}

// WithReceipt returns a context whose outermost Run stores its commit receipt
// into dst. Callers that reach the executor through another API use it to
// learn the exact height and root of their own commit.
func WithReceipt(ctx context.Context, dst *Receipt) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, receiptKey{}, dst)
}

// InTransaction reports whether ctx carries a running transaction.
func InTransaction(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(frameKey{}).(*frame)
	return ok
}

// Depth returns the nesting depth of the transaction carried by ctx: 1 for
// the outermost call, 0 outside any transaction.
func Depth(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok {
		return 0
	}
	return f.depth + 1
}
