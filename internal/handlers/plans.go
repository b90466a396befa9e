package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
	"github.com/PortNumber53/membership-checkout/backend/internal/store"
)

// PlanCatalog defines the behaviour required from the storage backing the plan handlers.
type PlanCatalog interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// ListPlans returns every membership plan in catalog order.
func ListPlans(catalog PlanCatalog, log *zap.Logger) http.HandlerFunc {
	log = nopIfNil(log)
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := catalog.ListPlans(r.Context())
		if err != nil {
			requestLogger(log, r).Error("list plans failed", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Failed to fetch membership plans")
			return
		}
		if plans == nil {
			plans = []models.Plan{}
		}
		writeJSON(w, http.StatusOK, plans)
	}
}

// GetPlan returns the plan named by the {id} path parameter.
func GetPlan(catalog PlanCatalog, log *zap.Logger) http.HandlerFunc {
	log = nopIfNil(log)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid plan ID")
			return
		}

		plan, err := catalog.GetPlan(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrPlanNotFound):
			writeMessage(w, http.StatusNotFound, "Plan not found")
		case err != nil:
			requestLogger(log, r).Error("get plan failed", zap.Int64("plan_id", id), zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Failed to fetch membership plan")
		default:
			writeJSON(w, http.StatusOK, plan)
		}
	}
}
