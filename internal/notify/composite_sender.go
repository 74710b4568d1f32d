package notify

import (
	"context"
	"errors"
	"fmt"
)

// CompositeSender delivers every message through all registered senders.
type CompositeSender struct {
	senders []Sender
}

func NewCompositeSender(senders ...Sender) *CompositeSender {
	cs := &CompositeSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

// AddSender registers another sender. nil is ignored.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

func (cs *CompositeSender) Len() int {
	return len(cs.senders)
}

// Send calls every sender even after a failure and joins the errors.
func (cs *CompositeSender) Send(ctx context.Context, msg Message) error {
	if len(cs.senders) == 0 {
		return errors.New("no notification senders configured")
	}

	var errs []error
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("composite send failed: %w", errors.Join(errs...))
	}
	return nil
}
