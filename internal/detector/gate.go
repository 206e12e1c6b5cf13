package detector

import "context"

// Gate limits how many inferences may run at once across all streams. The
// accelerator behind the detection service has a fixed parallel capacity,
// so access is capacity-limited, never unbounded-concurrent.
type Gate struct {
	slots chan struct{}
}

// NewGate returns a gate admitting up to n concurrent inferences.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	<-g.slots
}
