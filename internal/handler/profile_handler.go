package handler

import (
	"net/http"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Profile: owner
// ============================================================

func getProfileHandler(identity *service.IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/profile")
		defer span.End()

		profileID := ProfileIDFromContext(ctx)
		span.SetAttributes(attribute.String("profile.id", profileID))

		profile, err := identity.GetProfile(ctx, profileID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func saveProfileHandler(identity *service.IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/profile")
		defer span.End()

		profileID := ProfileIDFromContext(ctx)
		span.SetAttributes(attribute.String("profile.id", profileID))

		var req domain.BusinessProfile
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := identity.SaveProfile(ctx, profileID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func dashboardHandler(dashboard *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/dashboard")
		defer span.End()

		dash, err := dashboard.Dashboard(ctx, ProfileIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}

// ============================================================
// Profile: public
// ============================================================

func publicProfileHandler(identity *service.IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/public/profiles/{slugOrId}")
		defer span.End()

		slugOrID := chi.URLParam(r, "slugOrId")
		span.SetAttributes(attribute.String("profile.ref", slugOrID))

		profile, err := identity.ResolveProfile(ctx, slugOrID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile.Public())
	}
}
