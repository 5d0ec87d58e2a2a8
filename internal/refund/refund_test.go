package refund

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/rabbitmq"
)

var testRefund = models.RefundRequest{
	ID:             "subscription:7:cancel",
	UserID:         "u1",
	SubscriptionID: 7,
	Points:         50,
	Reason:         models.RefundReasonCancel,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPNotifier_Credit(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "ok", status: http.StatusOK},
		{name: "duplicate credit", status: http.StatusConflict},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "bad request", status: http.StatusBadRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/wallet/credits", r.URL.Path)
				assert.Equal(t, testRefund.ID, r.Header.Get("Idempotency-Key"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var got models.RefundRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, testRefund, got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			n := NewHTTPNotifier(HTTPConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, discardLogger())
			err := n.Credit(context.Background(), testRefund)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPNotifier_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(HTTPConfig{
		BaseURL:          srv.URL,
		Timeout:          time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, discardLogger())

	for i := 0; i < 2; i++ {
		err := n.Credit(context.Background(), testRefund)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrWalletUnavailable)
	}

	err := n.Credit(context.Background(), testRefund)
	assert.ErrorIs(t, err, ErrWalletUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n := NewHTTPNotifier(HTTPConfig{BaseURL: url, Timeout: 200 * time.Millisecond}, discardLogger())
	assert.Error(t, n.Credit(context.Background(), testRefund))
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestQueueNotifier_Credit(t *testing.T) {
	tests := []struct {
		name       string
		publishErr error
		wantErr    bool
	}{
		{name: "published"},
		{name: "channel closed", publishErr: errors.New("channel/connection is not open"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &MockChannel{}
			ch.On("Publish", rabbitmq.WalletExchange, rabbitmq.RefundRoutingKey, false, false,
				mock.MatchedBy(func(p amqp.Publishing) bool {
					var got models.RefundRequest
					return p.MessageId == testRefund.ID &&
						p.Type == MessageType &&
						p.DeliveryMode == amqp.Persistent &&
						json.Unmarshal(p.Body, &got) == nil && got == testRefund
				})).Return(tt.publishErr).Once()

			err := NewQueueNotifier(ch).Credit(context.Background(), testRefund)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			ch.AssertExpectations(t)
		})
	}
}

func TestQueueNotifier_CanceledContext(t *testing.T) {
	ch := &MockChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewQueueNotifier(ch).Credit(ctx, testRefund)
	assert.ErrorIs(t, err, context.Canceled)
	ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogNotifier_Credit(t *testing.T) {
	assert.NoError(t, NewLogNotifier(discardLogger()).Credit(context.Background(), testRefund))
}
