package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

var fastPolicy = Policy{MaxRetries: 3, Initial: time.Millisecond, TimeoutWait: time.Millisecond}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPolicy_Do(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"success first try", nil, 1, false},
		{"transient then success", []error{errors.New("502")}, 2, false},
		{"timeout then success", []error{timeoutErr{}}, 2, false},
		{"gives up after retries", []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d"), errors.New("e")}, 4, true},
		{"permanent api error", []error{tele.ErrBlockedByUser}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy.Do(context.Background(), func() error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPolicy_OnRetry(t *testing.T) {
	var retries int
	p := fastPolicy
	p.OnRetry = func(error, time.Duration) { retries++ }

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxRetries: 3, Initial: time.Hour}
	err := p.Do(ctx, func() error { return errors.New("boom") })
	assert.Error(t, err)
}

type fakeSender struct {
	sendErrs []error
	editErr  error
	sent     int
}

func (f *fakeSender) Send(tele.Recipient, interface{}, ...interface{}) (*tele.Message, error) {
	f.sent++
	if f.sent <= len(f.sendErrs) {
		return nil, f.sendErrs[f.sent-1]
	}
	return &tele.Message{ID: f.sent}, nil
}

func (f *fakeSender) Edit(tele.Editable, interface{}, ...interface{}) (*tele.Message, error) {
	return nil, f.editErr
}

func TestPolicy_SendAndEdit(t *testing.T) {
	s := &fakeSender{sendErrs: []error{errors.New("reset by peer")}}
	msg, err := fastPolicy.Send(context.Background(), s, &tele.Chat{ID: 1}, "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, msg.ID)

	s.editErr = tele.ErrMessageNotModified
	_, err = fastPolicy.Edit(context.Background(), s, &tele.Message{ID: 1, Chat: &tele.Chat{ID: 1}}, "same")
	assert.NoError(t, err)
}

func TestPolicy_FinalTimeouts(t *testing.T) {
	s := &fakeSender{sendErrs: []error{timeoutErr{}}}
	_, err := fastPolicy.WithFinalTimeouts().Send(context.Background(), s, &tele.Chat{ID: 1}, &tele.Dice{Type: tele.Cube.Type})
	assert.Error(t, err)
	assert.Equal(t, 1, s.sent, "a timed-out send may have landed and is not repeated")

	s = &fakeSender{sendErrs: []error{errors.New("502 bad gateway")}}
	_, err = fastPolicy.WithFinalTimeouts().Send(context.Background(), s, &tele.Chat{ID: 1}, "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, s.sent)
}
