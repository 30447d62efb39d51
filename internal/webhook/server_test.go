package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIPN struct {
	err       error
	body      string
	signature string
	payouts   int
}

func (f *fakeIPN) HandlePaymentIPN(_ context.Context, body []byte, sig string) error {
	f.body, f.signature = string(body), sig
	return f.err
}

func (f *fakeIPN) HandlePayoutIPN(_ context.Context, body []byte, sig string) error {
	f.payouts++
	f.body, f.signature = string(body), sig
	return f.err
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(config.HTTPConfig{}, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthzChecksDatabase(t *testing.T) {
	healthy := NewServer(config.HTTPConfig{}, Options{Health: func(context.Context) error { return nil }})
	rec := do(t, healthy.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewServer(config.HTTPConfig{}, Options{Health: func(context.Context) error { return errors.New("connection refused") }})
	rec = do(t, down.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestPaymentIPN(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"bad signature", service.ErrInvalidSignature, http.StatusUnauthorized},
		{"malformed", service.ErrMalformedIPN, http.StatusBadRequest},
		{"transient", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeIPN{err: tt.err}
			s := NewServer(config.HTTPConfig{}, Options{Payments: f})

			rec := do(t, s.Handler(), http.MethodPost, "/webhook", `{"payment_id":1}`, map[string]string{SignatureHeader: "abc"})

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, `{"payment_id":1}`, f.body)
			assert.Equal(t, "abc", f.signature)
		})
	}
}

func TestPayoutIPN(t *testing.T) {
	f := &fakeIPN{}
	s := NewServer(config.HTTPConfig{}, Options{Payments: f})

	rec := do(t, s.Handler(), http.MethodPost, "/payout_webhook", `{"id":"p1"}`, map[string]string{SignatureHeader: "sig"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.payouts)
}

func TestPaymentRoutesDisabled(t *testing.T) {
	s := NewServer(config.HTTPConfig{}, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/webhook", "{}", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTelegramWebhook(t *testing.T) {
	var got string
	tg := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		got = buf.String()
		w.WriteHeader(http.StatusOK)
	})
	s := NewServer(config.HTTPConfig{}, Options{Telegram: tg})

	rec := do(t, s.Handler(), http.MethodPost, "/telegram-webhook", `{"update_id":1}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"update_id":1}`, got)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "medinispx_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer(config.HTTPConfig{}, Options{Gatherer: reg})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medinispx_test_total 1")
}
