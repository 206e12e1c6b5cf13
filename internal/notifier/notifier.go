// Package notifier delivers alerts to external channels. Dispatch is
// decoupled from the detection pipeline through a bounded queue so a slow
// channel degrades notification latency, never detection throughput.
package notifier

import (
	"context"
	"errors"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// Sender delivers one alert to one channel. Delivery is acknowledged by a
// nil return; any error is retried by the dispatcher.
type Sender interface {
	Send(ctx context.Context, alert models.Alert) error
}

// Fanout отправляет алерт во все каналы сразу
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
