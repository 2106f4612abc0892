package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/httpx"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/observability"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

// writeServiceError renders a service error using the shared error envelope. resource names the
// entity in not-found and conflict responses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, resource string) {
	if err == nil {
		return
	}
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		apiErr := httpx.NewError("invalid_request", validation.Message, http.StatusBadRequest)
		if validation.Field != "" {
			apiErr = apiErr.WithDetails(map[string]any{"field": validation.Field})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_not_found", resource+" not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_conflict", resource+" conflicts with an existing record", http.StatusConflict))
	case errors.Is(err, services.ErrNumberGenerationExhausted):
		observability.FromContext(ctx).Error("order number generation exhausted", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_number_unavailable", "unable to allocate an order number, retry later", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrDependencyFailure):
		observability.FromContext(ctx).Error("dependency failure", zap.String("resource", resource), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", "a backing service is unavailable", http.StatusServiceUnavailable))
	default:
		observability.FromContext(ctx).Error("unhandled service error", zap.String("resource", resource), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}
