package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// DefaultThreshold is the unit count below which work stays on the caller's goroutine.
const DefaultThreshold = 100

// Source yields work items one at a time. ok is false when exhausted.
type Source[T any] func() (item T, ok bool, err error)

// Func processes a single unit.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

type Options struct {
	UseParallel bool
	MaxWorkers  int // <= 0 means runtime.NumCPU()
	Threshold   int // <= 0 means DefaultThreshold
	// Discard, when set, receives items that were pulled from the source but
	// never processed because the run failed.
	Discard func(item any)
	Logger  *zap.Logger
}

func (o Options) workers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return runtime.NumCPU()
}

func (o Options) threshold() int {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return DefaultThreshold
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Parallel reports whether expected units would be fanned out to workers.
func (o Options) Parallel(expected int) bool {
	return o.UseParallel && expected >= o.threshold()
}

type job[T any] struct {
	index int
	item  T
}

type result[R any] struct {
	index int
	value R
	err   error
}

// Run applies fn to every item from src and returns results in submission
// order. The first failure aborts the run and is returned.
func Run[T, R any](ctx context.Context, src Source[T], expected int, fn Func[T, R], opts Options) ([]R, error) {
	if !opts.Parallel(expected) {
		return runSequential(ctx, src, fn, opts)
	}
	return runParallel(ctx, src, fn, opts)
}

// Dispatch is Run over an in-memory slice.
func Dispatch[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options) ([]R, error) {
	i := 0
	src := func() (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		item := items[i]
		i++
		return item, true, nil
	}
	return Run(ctx, src, len(items), fn, opts)
}

func runSequential[T, R any](ctx context.Context, src Source[T], fn Func[T, R], opts Options) ([]R, error) {
	var out []R
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, ok, err := src()
		if err != nil {
			return nil, fmt.Errorf("source failed after %d item(s): %w", index, err)
		}
		if !ok {
			return out, nil
		}
		value, err := fn(ctx, item)
		if err != nil {
			return nil, &UnitError{Index: index, Err: err}
		}
		out = append(out, value)
	}
}

func runParallel[T, R any](parent context.Context, src Source[T], fn Func[T, R], opts Options) ([]R, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	numWorkers := opts.workers()
	log := opts.logger()
	log.Debug("workers: dispatching in parallel", zap.Int("workers", numWorkers))

	jobs := make(chan job[T], numWorkers*2)
	results := make(chan result[R], numWorkers*2)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for id := 0; id < numWorkers; id++ {
		go worker(ctx, id, jobs, results, fn, opts, &wg)
	}

	var srcErr error
	var produced int
	go func() {
		defer close(jobs)
		for {
			item, ok, err := src()
			if err != nil {
				srcErr = fmt.Errorf("source failed after %d item(s): %w", produced, err)
				cancel()
				return
			}
			if !ok {
				return
			}
			select {
			case jobs <- job[T]{index: produced, item: item}:
				produced++
			case <-ctx.Done():
				discard(opts, item)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []result[R]
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = &UnitError{Index: res.index, Err: res.err}
				cancel()
			}
			continue
		}
		collected = append(collected, res)
	}

	// the producer has returned once jobs is drained and results closed
	if srcErr != nil {
		return nil, srcErr
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	out := make([]R, produced)
	for _, res := range collected {
		out[res.index] = res.value
	}
	return out, nil
}

func worker[T, R any](ctx context.Context, id int, jobs <-chan job[T], results chan<- result[R], fn Func[T, R], opts Options, wg *sync.WaitGroup) {
	defer wg.Done()
	handled := 0
	defer func() {
		opts.logger().Debug("workers: worker stopping", zap.Int("worker", id), zap.Int("handled", handled))
	}()
	for j := range jobs {
		if ctx.Err() != nil {
			discard(opts, j.item)
			continue
		}
		value, err := fn(ctx, j.item)
		handled++
		results <- result[R]{index: j.index, value: value, err: err}
	}
}

func discard[T any](opts Options, item T) {
	if opts.Discard != nil {
		opts.Discard(item)
	}
}

// UnitError wraps the failure of the unit at Index.
type UnitError struct {
	Index int
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d failed: %v", e.Index, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// IsUnitError reports whether err came from a processing unit rather than the source.
func IsUnitError(err error) bool {
	var ue *UnitError
	return errors.As(err, &ue)
}
