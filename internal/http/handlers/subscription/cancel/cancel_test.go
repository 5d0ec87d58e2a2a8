package cancel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, id int64, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, id, now)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	active := &models.Subscription{ID: 5, UserID: "u1", Status: models.SubscriptionActive}
	canceled := &models.Subscription{ID: 5, UserID: "u1", Status: models.SubscriptionCanceled}

	tests := []struct {
		name           string
		id             string
		userID         string
		role           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "owner cancels",
			id:     "5",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(5)).Return(active, nil).Once()
				m.On("Cancel", mock.Anything, int64(5), now).Return(canceled, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"Canceled"`,
		},
		{
			name:   "admin cancels",
			id:     "5",
			userID: "staff",
			role:   "admin",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(5)).Return(active, nil).Once()
				m.On("Cancel", mock.Anything, int64(5), now).Return(canceled, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"Canceled"`,
		},
		{
			name:   "other user",
			id:     "5",
			userID: "u2",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(5)).Return(active, nil).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"subscription not found"`,
		},
		{
			name:   "already canceled",
			id:     "5",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, int64(5)).Return(canceled, nil).Once()
				m.On("Cancel", mock.Anything, int64(5), now).
					Return(nil, fmt.Errorf("cancel: %w", models.ErrInvalidState)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"operation is not allowed in the current state"`,
		},
		{
			name:           "invalid id",
			id:             "x",
			userID:         "u1",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid id"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService, clock.NewManual(now))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/"+tt.id+"/cancel", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middlewarectx.UserID, tt.userID)
			ctx = context.WithValue(ctx, middlewarectx.Role, tt.role)
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
