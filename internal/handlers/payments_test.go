package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PortNumber53/membership-checkout/backend/internal/checkout"
	"github.com/PortNumber53/membership-checkout/backend/internal/models"
	"github.com/PortNumber53/membership-checkout/backend/internal/store"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) SubmitPayment(ctx context.Context, sub checkout.Submission) (*checkout.Confirmation, error) {
	args := m.Called(ctx, sub)
	conf, _ := args.Get(0).(*checkout.Confirmation)
	return conf, args.Error(1)
}

func (m *mockPaymentService) GetPaymentStatus(ctx context.Context, id int64) (*models.PublicPayment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.PublicPayment)
	return p, args.Error(1)
}

const validPaymentBody = `{"planId":1,"amount":"9.99","cardholderName":"Jane Doe","email":"jane@example.com",` +
	`"cardNumber":"4111 1111 1111 1111","expiryDate":"12/27","cvv":"123","terms":true}`

type errorBody struct {
	Message string                `json:"message"`
	Errors  []checkout.FieldError `json:"errors"`
}

func paymentRouter(svc PaymentService) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/payments", SubmitPayment(svc, nil))
	r.Get("/api/payments/{id}", GetPayment(svc, nil))
	return r
}

func postPayment(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func realPaymentRouter(t *testing.T) http.Handler {
	t.Helper()
	mem, err := store.NewMemoryStore()
	require.NoError(t, err)
	return paymentRouter(checkout.NewService(mem, mem, nil))
}

func TestSubmitPayment_Success(t *testing.T) {
	rr := postPayment(t, realPaymentRouter(t), validPaymentBody)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])

	payment := body["payment"].(map[string]any)
	require.Equal(t, float64(1), payment["id"])
	require.Equal(t, "completed", payment["status"])
	require.Equal(t, "9.99", payment["amount"])

	plan := body["plan"].(map[string]any)
	require.Equal(t, "Monthly Membership", plan["name"])
	require.Equal(t, float64(30), plan["validityDays"])

	for _, secret := range []string{"12/27", "cvv", "cardNumber", "expiryDate", "terms"} {
		require.NotContains(t, rr.Body.String(), secret)
	}
}

func TestSubmitPayment_ValidationFailure(t *testing.T) {
	body := strings.Replace(validPaymentBody, `"terms":true`, `"terms":false`, 1)
	body = strings.Replace(body, `"cvv":"123"`, `"cvv":"12"`, 1)

	rr := postPayment(t, realPaymentRouter(t), body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Invalid payment data", got.Message)
	require.Len(t, got.Errors, 2)
	require.Equal(t, "cvv", got.Errors[0].Field)
	require.Equal(t, checkout.ReasonTooShort, got.Errors[0].Reason)
	require.Equal(t, "terms", got.Errors[1].Field)
	require.Equal(t, checkout.ReasonTermsNotAccepted, got.Errors[1].Reason)
}

func TestSubmitPayment_TypeError(t *testing.T) {
	body := strings.Replace(validPaymentBody, `"planId":1`, `"planId":"one"`, 1)
	body = strings.Replace(body, `"email":"jane@example.com"`, `"email":"nope"`, 1)

	rr := postPayment(t, realPaymentRouter(t), body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got.Errors, 2)
	require.Equal(t, checkout.FieldError{Field: "planId", Reason: checkout.ReasonInvalidType, Message: "must be a number"}, got.Errors[0])
	require.Equal(t, "email", got.Errors[1].Field)
}

func TestSubmitPayment_MalformedBody(t *testing.T) {
	rr := postPayment(t, realPaymentRouter(t), `{"planId":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Invalid payment data", got.Message)
}

func TestSubmitPayment_UnknownPlan(t *testing.T) {
	body := strings.Replace(validPaymentBody, `"planId":1`, `"planId":99`, 1)

	rr := postPayment(t, realPaymentRouter(t), body)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Selected plan not found", got.Message)
}

func TestSubmitPayment_UnexpectedError(t *testing.T) {
	svc := new(mockPaymentService)
	svc.On("SubmitPayment", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	rr := postPayment(t, paymentRouter(svc), validPaymentBody)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Payment processing failed. Please try again.", got.Message)
	svc.AssertExpectations(t)
}

func TestGetPayment(t *testing.T) {
	created := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	svc := new(mockPaymentService)
	svc.On("GetPaymentStatus", mock.Anything, int64(7)).Return(&models.PublicPayment{
		ID: 7, PlanID: 2, Amount: "99.99", Status: models.PaymentCompleted, CreatedAt: created,
	}, nil).Once()
	svc.On("GetPaymentStatus", mock.Anything, int64(8)).Return(nil, checkout.ErrPaymentNotFound).Once()

	router := paymentRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/7", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var payment models.PublicPayment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payment))
	require.Equal(t, int64(7), payment.ID)
	require.True(t, created.Equal(payment.CreatedAt))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/8", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/x1", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertExpectations(t)
}

func TestLookupsWithIDsBeyondInt32(t *testing.T) {
	router := realPaymentRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/9999999999", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	body := strings.Replace(validPaymentBody, `"planId":1`, `"planId":1099511627776`, 1)
	rr = postPayment(t, router, body)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/99999999999999999999", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitPayment_ReportsEveryTypeError(t *testing.T) {
	body := strings.Replace(validPaymentBody, `"planId":1`, `"planId":"one"`, 1)
	body = strings.Replace(body, `"cardholderName":"Jane Doe"`, `"cardholderName":42`, 1)
	body = strings.Replace(body, `"cvv":"123"`, `"cvv":123`, 1)

	rr := postPayment(t, realPaymentRouter(t), body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var got errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, []checkout.FieldError{
		{Field: "planId", Reason: checkout.ReasonInvalidType, Message: "must be a number"},
		{Field: "cardholderName", Reason: checkout.ReasonInvalidType, Message: "must be a string"},
		{Field: "cvv", Reason: checkout.ReasonInvalidType, Message: "must be a string"},
	}, got.Errors)
}

func TestSubmitPayment_NonObjectBody(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"payment"`} {
		rr := postPayment(t, realPaymentRouter(t), body)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)

		var got errorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Errors, 1)
		require.Equal(t, "body", got.Errors[0].Field)
	}
}
