// Package verify runs the two independent geometry checks of spec §4.6
// over a routed Store: shorts/self-shorts (bucket-hashed segment-pair
// intersection) and opens (per-net connectivity from pin to pin). Both
// checks share one read-only Store and report into a single atomic
// first-error flag guarding a mutex-protected message, the same sharing
// discipline core/concurrency_test.go uses for its WaitGroup fan-out:
// every goroutine may read, at most one writes, and the write happens
// exactly once.
package verify

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/katalvlaran/vlsiflow/netlist"
	"golang.org/x/sync/errgroup"
)

// firstError records only the first message reported to it; subsequent
// reports are dropped. The atomic.Bool gates entry so exactly one
// goroutine ever touches msg, even though many may call report
// concurrently.
type firstError struct {
	flag atomic.Bool
	mu   sync.Mutex
	msg  string
}

func (f *firstError) report(msg string) {
	if !f.flag.CompareAndSwap(false, true) {
		return
	}
	f.mu.Lock()
	f.msg = msg
	f.mu.Unlock()
}

func (f *firstError) err() error {
	if !f.flag.Load() {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return errors.New(f.msg)
}

// Check runs the shorts/self-shorts check and the opens check as two
// pool tasks (spec §5's verifier parallel region) and returns the first
// diagnostic either one reports, or nil if both pass.
func Check(store *netlist.Store, cfg config.Config) error {
	fe := &firstError{}

	var grp errgroup.Group
	grp.Go(func() error {
		checkShorts(store, cfg, fe)
		return nil
	})
	grp.Go(func() error {
		checkOpens(store, cfg, fe)
		return nil
	})
	_ = grp.Wait()

	return fe.err()
}
