package service

import (
	"context"

	"github.com/boddenberg/bazchat-go/internal/domain"

	"golang.org/x/sync/errgroup"
)

// DashboardService assembles the owner's landing snapshot.
type DashboardService struct {
	identity *IdentityService
	chat     *ChatService
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(identity *IdentityService, chat *ChatService) *DashboardService {
	return &DashboardService{identity: identity, chat: chat}
}

// Dashboard fetches the profile and session list in parallel.
func (s *DashboardService) Dashboard(ctx context.Context, profileID string) (*domain.Dashboard, error) {
	ctx, span := chatTracer.Start(ctx, "DashboardService.Dashboard")
	defer span.End()

	var (
		profile  *domain.BusinessProfile
		sessions []domain.ChatSession
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.identity.GetProfile(gctx, profileID)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.chat.ListSessions(gctx, profileID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unread := 0
	for _, sess := range sessions {
		unread += sess.UnreadCount
	}
	return &domain.Dashboard{Profile: profile, Sessions: sessions, UnreadTotal: unread}, nil
}
