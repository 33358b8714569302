package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/infra/resilience"
	"github.com/boddenberg/bazchat-go/internal/port"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AutoResponder answers customer messages on behalf of owners who enabled
// the AI assistant. Replies run in the background, bounded by a bulkhead;
// when it is full the reply is dropped rather than queued.
type AutoResponder struct {
	store        port.ChatStore
	generator    port.ReplyGenerator
	bulkhead     *resilience.Bulkhead
	cb           *gobreaker.CircuitBreaker
	timeout      time.Duration
	historyLimit int
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	wg           sync.WaitGroup
}

// NewAutoResponder creates an auto-responder. historyLimit caps how many of
// the latest messages are sent to the model.
func NewAutoResponder(
	store port.ChatStore,
	generator port.ReplyGenerator,
	maxConcurrency int,
	timeout time.Duration,
	historyLimit int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AutoResponder {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &AutoResponder{
		store:        store,
		generator:    generator,
		bulkhead:     resilience.NewBulkhead(maxConcurrency),
		cb:           resilience.NewCircuitBreaker("llm/"+generator.Name(), nil),
		timeout:      timeout,
		historyLimit: historyLimit,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Trigger schedules a reply for the session. It never blocks and reports
// whether the reply was scheduled.
func (a *AutoResponder) Trigger(profile *domain.BusinessProfile, sessionID string) bool {
	if !a.bulkhead.TryAcquire() {
		a.metrics.IncrAutoReply(observability.AutoReplyDropped)
		a.logger.Warn("auto-reply dropped: too many in flight",
			zap.String("profile_id", profile.ID),
			zap.String("session_id", sessionID),
		)
		return false
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.bulkhead.Release()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if _, err := a.Respond(ctx, profile, sessionID); err != nil {
			a.logger.Warn("auto-reply failed",
				zap.String("profile_id", profile.ID),
				zap.String("session_id", sessionID),
				zap.String("provider", a.generator.Name()),
				zap.Error(err),
			)
		}
	}()
	return true
}

// Respond generates and stores one reply synchronously. A session whose
// latest message is not from the customer is skipped.
func (a *AutoResponder) Respond(ctx context.Context, profile *domain.BusinessProfile, sessionID string) (*domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "AutoResponder.Respond")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("llm.provider", a.generator.Name()))

	history, err := a.store.ListMessages(ctx, sessionID)
	if err != nil {
		a.metrics.IncrAutoReply(observability.AutoReplyError)
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Sender != domain.SenderCustomer {
		a.metrics.IncrAutoReply(observability.AutoReplySkipped)
		return nil, nil
	}
	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}

	start := time.Now()
	out, err := a.cb.Execute(func() (any, error) {
		return a.generator.GenerateReply(ctx, BuildSystemPrompt(profile), history)
	})
	a.metrics.RecordRequestDuration("llm."+a.generator.Name(), time.Since(start))
	if err != nil {
		a.metrics.IncrAutoReply(observability.AutoReplyError)
		a.metrics.IncrExternalError("llm/" + a.generator.Name())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "llm/" + a.generator.Name()}
		}
		return nil, &domain.ErrExternalService{Service: "llm/" + a.generator.Name(), Err: err}
	}

	now := a.now().UTC()
	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    domain.SenderOwner,
		Text:      out.(string),
		Timestamp: now,
		IsRead:    true,
		IsAI:      true,
	}
	if _, err := a.store.InsertMessage(ctx, msg); err != nil {
		a.metrics.IncrAutoReply(observability.AutoReplyError)
		return nil, fmt.Errorf("store reply: %w", err)
	}
	if err := a.store.TouchSession(ctx, sessionID, msg.Text, now); err != nil {
		a.logger.Warn("auto-reply: preview update failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	a.metrics.IncrAutoReply(observability.AutoReplyOK)
	a.metrics.IncrMessage(domain.SenderOwner)
	a.logger.Info("auto-reply sent",
		zap.String("profile_id", profile.ID),
		zap.String("session_id", sessionID),
		zap.String("provider", a.generator.Name()),
	)
	return msg, nil
}

// Wait blocks until every scheduled reply has finished.
func (a *AutoResponder) Wait() {
	a.wg.Wait()
}
