package metalprice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:          srv.URL + "/",
		APIKey:           "test-key",
		Timeout:          time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, zap.NewNop())
	return client, &calls
}

func TestFetchRate_DirectQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "INR", r.URL.Query().Get("base"))
		assert.Equal(t, "XAU", r.URL.Query().Get("currencies"))
		w.Write([]byte(`{"success":true,"base":"INR","rates":{"INRXAU":186621.00,"XAU":0.0000053585}}`))
	})

	rate, err := client.FetchRate(context.Background(), "XAU")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("186621")), "rate %s", rate)
}

func TestFetchRate_InvertsPlainQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"base":"INR","rates":{"XAG":0.0004}}`))
	})

	rate, err := client.FetchRate(context.Background(), "XAG")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(2500)), "rate %s", rate)
}

func TestFetchRate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`},
		{name: "provider failure", status: http.StatusOK, body: `{"success":false,"error":{"statusCode":101,"message":"invalid key"}}`},
		{name: "missing symbol", status: http.StatusOK, body: `{"success":true,"rates":{"XAG":0.0004}}`, wantErr: ErrRateMissing},
		{name: "zero rate", status: http.StatusOK, body: `{"success":true,"rates":{"INRXAU":0}}`, wantErr: ErrRateMissing},
		{name: "malformed", status: http.StatusOK, body: `{"success":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchRate(context.Background(), "XAU")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestFetchRate_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.FetchRate(ctx, "XAU")
		require.Error(t, err)
	}

	_, err := client.FetchRate(ctx, "XAU")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRate_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	start := time.Now()
	_, err := client.FetchRate(context.Background(), "XAU")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 1900*time.Millisecond)
}
