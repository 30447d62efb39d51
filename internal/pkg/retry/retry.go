// Package retry wraps Telegram calls with exponential backoff that honours
// flood-control waits.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// Policy controls how failed calls are retried.
type Policy struct {
	MaxRetries  uint64
	Initial     time.Duration
	TimeoutWait time.Duration
	// FinalTimeouts stops at the first timeout. A timed-out request may
	// still have been delivered, so sends that must not repeat set it.
	FinalTimeouts bool
	// OnRetry is called before every retry.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy retries three times starting at one second; timeouts wait five.
var DefaultPolicy = Policy{
	MaxRetries:  3,
	Initial:     time.Second,
	TimeoutWait: 5 * time.Second,
}

// hintedBackOff lets the operation override the next wait.
type hintedBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	d := h.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if h.next > 0 {
		d, h.next = h.next, 0
	}
	return d
}

// Do runs op until it succeeds, returns a permanent error, the retries are
// spent or ctx ends.
func (p Policy) Do(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxElapsedTime = 0

	hinted := &hintedBackOff{BackOff: backoff.WithMaxRetries(exp, p.MaxRetries)}
	b := backoff.WithContext(hinted, ctx)

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if wait, ok := floodWait(err); ok {
			hinted.next = wait
			return err
		}
		if isTimeout(err) {
			if p.FinalTimeouts {
				return backoff.Permanent(err)
			}
			hinted.next = p.TimeoutWait
			return err
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("wait", wait).Msg("Telegram call failed, retrying")
		if p.OnRetry != nil {
			p.OnRetry(err, wait)
		}
	}

	return backoff.RetryNotify(wrapped, b, notify)
}

func floodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return time.Duration(floodPtr.RetryAfter) * time.Second, true
	}
	return 0, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isPermanent reports Bot API rejections that a retry cannot fix.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429
	}
	return false
}

// WithFinalTimeouts returns a copy of p that never retries a timeout.
func (p Policy) WithFinalTimeouts() Policy {
	p.FinalTimeouts = true
	return p
}

// Sender is the subset of *tele.Bot used for outgoing messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Send delivers a message with the policy's retries.
func (p Policy) Send(ctx context.Context, s Sender, to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	var msg *tele.Message
	err := p.Do(ctx, func() error {
		var err error
		msg, err = s.Send(to, what, opts...)
		return err
	})
	return msg, err
}

// Edit updates a message with the policy's retries. "message is not
// modified" is treated as success.
func (p Policy) Edit(ctx context.Context, s Sender, msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	var out *tele.Message
	err := p.Do(ctx, func() error {
		var err error
		out, err = s.Edit(msg, what, opts...)
		if errors.Is(err, tele.ErrMessageNotModified) {
			return nil
		}
		return err
	})
	return out, err
}
