package pipeline

import "time"

// Debounce forwards the latest value from in once delay has passed without a
// newer one. When in closes, a pending value is flushed and the output
// closes.
func Debounce[T any](in <-chan T, delay time.Duration) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var (
			pending T
			waiting bool
			timer   *time.Timer
			fire    <-chan time.Time
		)

		for {
			select {
			case v, ok := <-in:
				if !ok {
					if waiting {
						out <- pending
					}
					return
				}

				pending, waiting = v, true
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				fire = timer.C

			case <-fire:
				out <- pending
				waiting = false
				fire = nil
			}
		}
	}()

	return out
}
