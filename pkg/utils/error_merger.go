// Package utils holds small helpers for running the relay's listeners side by side.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import "sync"

// MergeErrorChans fans several error channels into one. The output channel is
// closed once every input channel has been closed, so ranging over it waits for
// all listeners to stop.
//
//	errs := MergeErrorChans(httpErrs, metricsErrs)
//	for err := range errs {
//		log.Error("Listener failed", logger.ErrorField(err))
//		cancel()
//	}
func MergeErrorChans(channels ...chan error) chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	wg.Add(len(channels))
	for _, ch := range channels {
		go func(c chan error) {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
