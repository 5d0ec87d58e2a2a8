package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreditWallet(ctx context.Context, req models.RefundRequest) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) WalletBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func TestHandleRefundMessage(t *testing.T) {
	valid := models.RefundRequest{
		ID:             "subscription:3:cancel",
		UserID:         "u1",
		SubscriptionID: 3,
		Points:         50,
		Reason:         models.RefundReasonCancel,
	}

	tests := []struct {
		name      string
		body      string
		setupMock func(*MockRepository)
		wantErr   bool
	}{
		{
			name: "credited",
			body: `{"refund_id":"subscription:3:cancel","user_id":"u1","subscription_id":3,"points":50,"reason":"cancel"}`,
			setupMock: func(r *MockRepository) {
				r.On("CreditWallet", mock.Anything, valid).Return(true, nil).Once()
			},
		},
		{
			name: "duplicate delivery",
			body: `{"refund_id":"subscription:3:cancel","user_id":"u1","subscription_id":3,"points":50,"reason":"cancel"}`,
			setupMock: func(r *MockRepository) {
				r.On("CreditWallet", mock.Anything, valid).Return(false, nil).Once()
			},
		},
		{
			name: "storage error requeues",
			body: `{"refund_id":"subscription:3:cancel","user_id":"u1","subscription_id":3,"points":50,"reason":"cancel"}`,
			setupMock: func(r *MockRepository) {
				r.On("CreditWallet", mock.Anything, valid).Return(false, errors.New("db down")).Once()
			},
			wantErr: true,
		},
		{
			name:      "malformed json is dropped",
			body:      `{"refund_id":`,
			setupMock: func(*MockRepository) {},
		},
		{
			name:      "zero points is dropped",
			body:      `{"refund_id":"subscription:3:cancel","user_id":"u1","points":0}`,
			setupMock: func(*MockRepository) {},
		},
		{
			name:      "missing user is dropped",
			body:      `{"refund_id":"subscription:3:cancel","points":10}`,
			setupMock: func(*MockRepository) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{}
			tt.setupMock(repo)
			svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

			err := svc.HandleRefundMessage(context.Background(), []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestBalance(t *testing.T) {
	repo := &MockRepository{}
	repo.On("WalletBalance", mock.Anything, "u1").Return(int64(120), nil).Once()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	points, err := svc.Balance(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, int64(120), points)
}

func TestCredit_InvalidRequest(t *testing.T) {
	repo := &MockRepository{}
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	credited, err := svc.Credit(context.Background(), models.RefundRequest{ID: "x", UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidRefund)
	assert.False(t, credited)
	repo.AssertNotCalled(t, "CreditWallet", mock.Anything, mock.Anything)
}
