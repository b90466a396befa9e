package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/checkout"
	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

const maxPaymentBodyBytes = 64 << 10

// PaymentService is the slice of the checkout workflow used by the payment handlers.
type PaymentService interface {
	SubmitPayment(ctx context.Context, sub checkout.Submission) (*checkout.Confirmation, error)
	GetPaymentStatus(ctx context.Context, id int64) (*models.PublicPayment, error)
}

// SubmitPayment validates the payment form and records the payment.
func SubmitPayment(svc PaymentService, log *zap.Logger) http.HandlerFunc {
	log = nopIfNil(log)
	return func(w http.ResponseWriter, r *http.Request) {
		sub, verr := decodeSubmission(w, r)
		if verr != nil {
			writeInvalidPayment(w, verr)
			return
		}

		conf, err := svc.SubmitPayment(r.Context(), sub)
		if err != nil {
			var invalid *checkout.ValidationError
			switch {
			case errors.As(err, &invalid):
				writeInvalidPayment(w, invalid)
			case errors.Is(err, checkout.ErrPlanNotFound):
				writeMessage(w, http.StatusNotFound, "Selected plan not found")
			default:
				requestLogger(log, r).Error("submit payment failed", zap.Int64("plan_id", sub.PlanID), zap.Error(err))
				writeMessage(w, http.StatusInternalServerError, "Payment processing failed. Please try again.")
			}
			return
		}

		writeJSON(w, http.StatusOK, conf)
	}
}

// GetPayment returns the public status of a recorded payment.
func GetPayment(svc PaymentService, log *zap.Logger) http.HandlerFunc {
	log = nopIfNil(log)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid payment ID")
			return
		}

		payment, err := svc.GetPaymentStatus(r.Context(), id)
		switch {
		case errors.Is(err, checkout.ErrPaymentNotFound):
			writeMessage(w, http.StatusNotFound, "Payment not found")
		case err != nil:
			requestLogger(log, r).Error("get payment failed", zap.Int64("payment_id", id), zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Failed to fetch payment")
		default:
			writeJSON(w, http.StatusOK, payment)
		}
	}
}

func writeInvalidPayment(w http.ResponseWriter, verr *checkout.ValidationError) {
	writeJSON(w, http.StatusBadRequest, messageResponse{
		Message: "Invalid payment data",
		Errors:  verr.Fields,
	})
}

// decodeSubmission reads the request body. Every field with the wrong JSON
// type is reported as invalid_type alongside the schema violations of the
// other fields instead of aborting the batch.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (checkout.Submission, *checkout.ValidationError) {
	var sub checkout.Submission

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPaymentBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, &sub)
	}
	if err == nil {
		return sub, nil
	}

	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return sub, invalidBody()
	}

	typed, err := typeErrors(body)
	if err != nil {
		return sub, invalidBody()
	}

	out := &checkout.ValidationError{}
	var rest *checkout.ValidationError
	if errors.As(checkout.Validate(sub.Normalize()), &rest) {
		for _, f := range rest.Fields {
			if te, ok := typed[f.Field]; ok {
				f = te
				delete(typed, f.Field)
			}
			out.Fields = append(out.Fields, f)
		}
	}
	for _, name := range submissionFields {
		if te, ok := typed[name]; ok {
			out.Fields = append(out.Fields, te)
		}
	}
	return sub, out
}

// typeErrors decodes each top-level member of body on its own, since
// encoding/json only reports the first type mismatch of a document.
func typeErrors(body []byte) (map[string]checkout.FieldError, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, err
	}

	out := make(map[string]checkout.FieldError)
	for key, value := range members {
		single, err := json.Marshal(map[string]json.RawMessage{key: value})
		if err != nil {
			return nil, err
		}

		var sub checkout.Submission
		var typeErr *json.UnmarshalTypeError
		if errors.As(json.Unmarshal(single, &sub), &typeErr) {
			out[typeErr.Field] = checkout.FieldError{
				Field:   typeErr.Field,
				Reason:  checkout.ReasonInvalidType,
				Message: "must be a " + jsonTypeName(typeErr.Type.Kind().String()),
			}
		}
	}
	return out, nil
}

// submissionFields lists the JSON names of checkout.Submission in field order.
var submissionFields = func() []string {
	t := reflect.TypeOf(checkout.Submission{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		names = append(names, strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0])
	}
	return names
}()

func invalidBody() *checkout.ValidationError {
	return &checkout.ValidationError{Fields: []checkout.FieldError{{
		Field:   "body",
		Reason:  checkout.ReasonInvalid,
		Message: "request body must be a JSON object",
	}}}
}

func jsonTypeName(kind string) string {
	switch kind {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	default:
		return "number"
	}
}
