package loader

import (
	"errors"
	"runtime"
	"sync"
)

// ErrLoadDropped is the error recorded when a LoadOp is released without
// ever being completed or errored. LoadOp is a guard: dropping it without
// Complete/Error records a drop, treated as an error.
var ErrLoadDropped = errors.New("loader: AssetLoadOp dropped without completion")

// LoadOp is the guard object AssetStorage.UpdateAsset receives and must
// eventually signal exactly once via Complete or Error. If an
// AssetStorage implementation loses the op without signalling it, the
// finalizer installed in newLoadOp fires Drop once the op becomes
// unreachable, unblocking wait with ErrLoadDropped instead of hanging the
// driver goroutine forever.
type LoadOp struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	signalled bool
}

func newLoadOp() *LoadOp {
	op := &LoadOp{done: make(chan struct{})}
	runtime.SetFinalizer(op, (*LoadOp).Drop)
	return op
}

// Complete signals successful completion. Signalling twice panics.
func (op *LoadOp) Complete() {
	op.signal(nil)
}

// Error signals a failed load.
func (op *LoadOp) Error(err error) {
	op.signal(err)
}

// Drop records the op as abandoned if it was never completed or errored.
// Safe to call more than once or alongside Complete/Error.
func (op *LoadOp) Drop() {
	op.mu.Lock()
	if op.signalled {
		op.mu.Unlock()
		return
	}
	op.signalled = true
	op.err = ErrLoadDropped
	op.mu.Unlock()
	close(op.done)
}

func (op *LoadOp) signal(err error) {
	op.mu.Lock()
	if op.signalled {
		op.mu.Unlock()
		panic(errLoadOpAlreadySignalled)
	}
	op.signalled = true
	op.err = err
	op.mu.Unlock()
	close(op.done)
	runtime.SetFinalizer(op, nil)
}

// wait blocks until the op is signalled, returning its error (or
// ErrLoadDropped if the op was abandoned without ever being signalled).
func (op *LoadOp) wait() error {
	<-op.done
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}
