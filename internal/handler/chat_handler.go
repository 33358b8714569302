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
// Chat: owner
// ============================================================

func listSessionsHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/sessions")
		defer span.End()

		sessions, err := chat.ListSessions(ctx, ProfileIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if sessions == nil {
			sessions = []domain.ChatSession{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func ownerMessagesHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/sessions/{sessionId}/messages")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", sessionID))

		msgs, err := chat.ListMessages(ctx, ProfileIDFromContext(ctx), sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func markReadHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/sessions/{sessionId}/read")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", sessionID))

		marked, err := chat.MarkRead(ctx, ProfileIDFromContext(ctx), sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.MarkReadResponse{Marked: marked})
	}
}

func replyHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/sessions/{sessionId}/reply")
		defer span.End()

		sessionID := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", sessionID))

		var req domain.ReplyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := chat.Reply(ctx, ProfileIDFromContext(ctx), sessionID, req.Text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// ============================================================
// Chat: customer (public link)
// ============================================================

func customerMessagesHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/public/profiles/{slugOrId}/sessions/{sessionId}/messages")
		defer span.End()

		slugOrID := chi.URLParam(r, "slugOrId")
		sessionID := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("profile.ref", slugOrID), attribute.String("session.id", sessionID))

		msgs, err := chat.FetchCustomerMessages(ctx, slugOrID, sessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func customerSendHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/public/profiles/{slugOrId}/sessions/{sessionId}/messages")
		defer span.End()

		slugOrID := chi.URLParam(r, "slugOrId")
		sessionID := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("profile.ref", slugOrID), attribute.String("session.id", sessionID))

		var req domain.SendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := chat.CustomerSend(ctx, slugOrID, sessionID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
