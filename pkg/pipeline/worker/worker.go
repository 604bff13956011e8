// Package worker fans record processing out over a fixed number of goroutines while keeping
// results in input order.
package worker

import (
	"context"
	"sync"
)

type FailurePolicy int

const (
	// FailurePolicyPartialOutput records per-item errors and keeps going.
	FailurePolicyPartialOutput FailurePolicy = iota
	// FailurePolicyFailFast stops the run on the first item error.
	FailurePolicyFailFast
)

type Options struct {
	Workers       int
	FailurePolicy FailurePolicy
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// Processor handles one item. index is the item's position in the input slice.
type Processor[In any, Out any] func(ctx context.Context, index int, in In) (Out, error)

// ProcessAll runs the processor over all input items.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor Processor[In, Out],
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback runs the processor over all input items and invokes onResult once per
// item, in input order, as soon as every earlier item has completed. A callback error stops
// the run.
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor Processor[In, Out],
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]Result[In, Out], len(items))

	type job struct {
		idx int
		in  In
	}

	jobs := make(chan job)
	done := make(chan Result[In, Out], opts.Workers)

	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	workerFn := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				return
			}
			res, err := processor(runCtx, j.idx, j.in)
			select {
			case done <- Result[In, Out]{Index: j.idx, Input: j.in, Output: res, Err: err}:
			case <-runCtx.Done():
				return
			}
			if err != nil && opts.FailurePolicy == FailurePolicyFailFast {
				fail(err)
				return
			}
		}
	}

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job{idx: i, in: item}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	ready := make([]bool, len(items))
	next := 0
	for res := range done {
		out[res.Index] = res
		ready[res.Index] = true
		for next < len(items) && ready[next] {
			if onResult != nil && runCtx.Err() == nil {
				if err := onResult(out[next]); err != nil {
					fail(err)
				}
			}
			next++
		}
	}

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
