package backtest

// concurrent.go: worker pool for per-instrument simulation.
//
// Instruments share no state, so each one is simulated on its own worker.
// Results are written by position, which keeps the report order equal to the
// universe order whatever order the workers finish in.

import (
	"runtime"
	"sync"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

type outcome struct {
	result domain.InstrumentResult
	err    error
}

// runConcurrent applies fn to every instrument using a worker pool.
// If workers <= 0 it uses runtime.NumCPU().
func runConcurrent(
	universe []Instrument,
	workers int,
	fn func(Instrument) (domain.InstrumentResult, error),
) []outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(1, len(universe)))

	results := make([]outcome, len(universe))
	workCh := make(chan int, len(universe))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range workCh {
				res, err := fn(universe[k])
				results[k] = outcome{result: res, err: err}
			}
		}()
	}

	for k := range universe {
		workCh <- k
	}
	close(workCh)
	wg.Wait()

	return results
}
