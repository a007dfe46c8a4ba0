package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adapter_http "github.com/ilmiynashr/journal-payments/internal/payment/adapters/http"
	"github.com/ilmiynashr/journal-payments/internal/payment/app"
	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
	"github.com/ilmiynashr/journal-payments/internal/payment/middleware"
)

const (
	testUserID = "8a2a34a0-1111-4a4a-9d9d-000000000001"
	testTxID   = "8a2a34a0-2222-4a4a-9d9d-000000000002"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, in app.CreateTransactionInput) (*domain.Transaction, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionService) ProcessPayment(ctx context.Context, transactionID string, provider domain.Provider) domain.PaymentOutcome {
	args := m.Called(ctx, transactionID, provider)
	return args.Get(0).(domain.PaymentOutcome)
}

func (m *MockTransactionService) CheckPaymentStatus(ctx context.Context, transactionID string) app.StatusCheckResult {
	args := m.Called(ctx, transactionID)
	return args.Get(0).(app.StatusCheckResult)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

type MockIdempotencyChecker struct {
	mock.Mock
}

func (m *MockIdempotencyChecker) Key(scope, key string) string {
	return "idem:" + scope + ":" + key
}

func (m *MockIdempotencyChecker) Seen(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// withAuthenticatedUser simulates the auth middleware for handler tests.
func withAuthenticatedUser(userID string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.AuthenticatedUserContextKey,
				middleware.AuthenticatedUser{ID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTransactionRouter(svc *MockTransactionService, idem *MockIdempotencyChecker, authed bool) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var checker adapter_http.IdempotencyChecker
	if idem != nil {
		checker = idem
	}
	handler := adapter_http.NewTransactionHandler(svc, checker, logger)
	r := chi.NewRouter()
	if authed {
		r.Use(withAuthenticatedUser(testUserID))
	}
	handler.RegisterRoutes(r)
	return r
}

func TestTransactionHandler_Create_Success(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	svc.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(in app.CreateTransactionInput) bool {
		return in.UserID == testUserID && in.Amount == 150000 &&
			in.ServiceType == domain.ServiceTypePublicationFee
	})).Return(&domain.Transaction{
		ID: testTxID, UserID: testUserID, Amount: 150000,
		Currency: "UZS", ServiceType: domain.ServiceTypePublicationFee,
		Status: domain.TransactionStatusPending,
	}, nil).Once()

	body := `{"amount":150000,"service_type":"publication_fee"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp adapter_http.TransactionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, testTxID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	svc.AssertExpectations(t)
}

func TestTransactionHandler_Create_Unauthenticated(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "CreateTransaction")
}

func TestTransactionHandler_Create_ValidationFailure(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	body := `{"amount":-5,"service_type":"publication_fee"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreateTransaction")
}

func TestTransactionHandler_Create_DuplicateIdempotencyKey(t *testing.T) {
	svc := new(MockTransactionService)
	idem := new(MockIdempotencyChecker)
	router := newTransactionRouter(svc, idem, true)

	idem.On("Seen", mock.Anything, "idem:tx_create:"+testUserID+":key-1").Return(true, nil).Once()

	body := `{"amount":150000,"service_type":"publication_fee"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	svc.AssertNotCalled(t, "CreateTransaction")
	idem.AssertExpectations(t)
}

func TestTransactionHandler_Create_FreshIdempotencyKeyProceeds(t *testing.T) {
	svc := new(MockTransactionService)
	idem := new(MockIdempotencyChecker)
	router := newTransactionRouter(svc, idem, true)

	idem.On("Seen", mock.Anything, mock.Anything).Return(false, nil).Once()
	svc.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(&domain.Transaction{ID: testTxID}, nil).Once()

	body := `{"amount":150000,"service_type":"top_up"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Idempotency-Key", "key-2")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestTransactionHandler_ProcessPayment_Success(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	svc.On("ProcessPayment", mock.Anything, testTxID, domain.ProviderPayme).
		Return(domain.PaymentOutcome{
			Success: true, TransactionID: testTxID,
			PaymentURL: "https://checkout.paycom.uz/abc",
		}).Once()

	body := `{"provider":"payme"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions/"+testTxID+"/pay", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp adapter_http.PaymentOutcomeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://checkout.paycom.uz/abc", resp.PaymentURL)
}

// Normalized failures still answer 200; the envelope carries the error.
func TestTransactionHandler_ProcessPayment_FailureEnvelope(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	svc.On("ProcessPayment", mock.Anything, testTxID, domain.Provider("")).
		Return(domain.PaymentOutcome{
			Success: false, TransactionID: testTxID,
			ErrorCode: domain.ErrCodeGeneric, Message: domain.DefaultErrorMessage,
		}).Once()

	req := httptest.NewRequest(http.MethodPost, "/transactions/"+testTxID+"/pay", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp adapter_http.PaymentOutcomeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, domain.ErrCodeGeneric, resp.ErrorCode)
	assert.Equal(t, domain.DefaultErrorMessage, resp.Message)
}

func TestTransactionHandler_ProcessPayment_InvalidID(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	req := httptest.NewRequest(http.MethodPost, "/transactions/not-a-uuid/pay", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "ProcessPayment")
}

func TestTransactionHandler_CheckStatus(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	paid := domain.PaymentStatusPaid
	svc.On("CheckPaymentStatus", mock.Anything, testTxID).
		Return(app.StatusCheckResult{ErrorCode: 0, ErrorNote: "Success", PaymentStatus: &paid}).Once()

	req := httptest.NewRequest(http.MethodGet, "/transactions/"+testTxID+"/status", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp app.StatusCheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Zero(t, resp.ErrorCode)
	require.NotNil(t, resp.PaymentStatus)
	assert.Equal(t, domain.PaymentStatusPaid, *resp.PaymentStatus)
}

func TestTransactionHandler_List(t *testing.T) {
	svc := new(MockTransactionService)
	router := newTransactionRouter(svc, nil, true)

	svc.On("ListTransactions", mock.Anything, testUserID, 10, 0).
		Return([]domain.Transaction{
			{ID: testTxID, UserID: testUserID, Status: domain.TransactionStatusCompleted},
		}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/transactions?limit=10", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []adapter_http.TransactionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, testTxID, resp[0].ID)
}

// contextRecorder captures the context passed to each log record so tests
// can verify handlers log with the request context.
type contextRecorder struct {
	inner slog.Handler
	ctxs  *[]context.Context
}

func (h *contextRecorder) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h *contextRecorder) Handle(ctx context.Context, rec slog.Record) error {
	*h.ctxs = append(*h.ctxs, ctx)
	return nil
}

func (h *contextRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextRecorder{inner: h.inner.WithAttrs(attrs), ctxs: h.ctxs}
}

func (h *contextRecorder) WithGroup(name string) slog.Handler {
	return &contextRecorder{inner: h.inner.WithGroup(name), ctxs: h.ctxs}
}

type traceKey struct{}

func TestTransactionHandler_ErrorResponseLogsRequestContext(t *testing.T) {
	var ctxs []context.Context
	logger := slog.New(&contextRecorder{
		inner: slog.NewTextHandler(io.Discard, nil),
		ctxs:  &ctxs,
	})
	handler := adapter_http.NewTransactionHandler(new(MockTransactionService), nil, logger)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(`{}`))
	req = req.WithContext(context.WithValue(req.Context(), traceKey{}, "trace-1"))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NotEmpty(t, ctxs)
	for _, ctx := range ctxs {
		value, _ := ctx.Value(traceKey{}).(string)
		assert.Equal(t, "trace-1", value)
	}
}
