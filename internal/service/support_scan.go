package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/repository"
	"go.uber.org/zap"
)

// SupportScanService surfaces members whose balance has fallen below the
// support threshold by notifying a handful of recently active neighbours.
// Each member is announced at most once per dedup window.
type SupportScanService struct {
	repo     *repository.Repository
	notifier *NotificationService

	batchSize  int
	fanOut     int
	dedupAfter time.Duration
}

// NewSupportScanService creates a support scan service.
func NewSupportScanService(repo *repository.Repository, notifier *NotificationService) *SupportScanService {
	return &SupportScanService{
		repo:       repo,
		notifier:   notifier,
		batchSize:  20,
		fanOut:     5,
		dedupAfter: 72 * time.Hour,
	}
}

// Run scans for members below the support threshold and fans out
// community-support notifications for any not announced recently.
func (s *SupportScanService) Run(ctx context.Context) error {
	members, err := s.repo.UsersBelowBalance(ctx, domain.PebsFromInt(domain.SupportNeededBelowPebs), s.batchSize)
	if err != nil {
		return fmt.Errorf("list members below threshold: %w", err)
	}

	for _, member := range members {
		announced, err := s.repo.HasRecentSupportNotice(ctx, member.ID, time.Now().Add(-s.dedupAfter))
		if err != nil {
			return fmt.Errorf("check support notices: %w", err)
		}
		if announced {
			continue
		}

		recipients, err := s.repo.RandomActiveUsers(ctx, []uuid.UUID{member.ID}, s.fanOut)
		if err != nil {
			return fmt.Errorf("pick support recipients: %w", err)
		}

		subjectID := member.ID
		data := models.NotificationData{SubjectID: &subjectID}
		title := "A community member could use some support"
		message := fmt.Sprintf("%s has been receiving a lot lately. Reach out if you can offer something.", member.DisplayName)
		for _, recipient := range recipients {
			if _, err := s.notifier.Notify(ctx, recipient.ID, domain.NotifyCommunitySupport,
				title, message, data, domain.PriorityHigh); err != nil {
				zap.L().Warn("support notification failed",
					zap.String("recipient", recipient.ID.String()), zap.Error(err))
			}
		}
		zap.L().Info("support scan announced member",
			zap.String("member", member.ID.String()),
			zap.Int("recipients", len(recipients)))
	}
	return nil
}
