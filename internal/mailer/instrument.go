package mailer

import (
	"context"
	"time"
)

// instrumented wraps a Sender and reports each dialog's wall time.
type instrumented struct {
	next    Sender
	observe func(time.Duration)
}

// Instrument decorates s so every Send reports its duration, success or not.
// Keeps the client itself metrics-agnostic.
func Instrument(s Sender, observe func(time.Duration)) Sender {
	return &instrumented{next: s, observe: observe}
}

func (i *instrumented) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := i.next.Send(ctx, msg)
	i.observe(time.Since(start))
	return err
}
