package service

import (
	"context"
	"fmt"

	"github.com/ripple-community/pebs-api/internal/observability"
	"github.com/ripple-community/pebs-api/internal/repository"
	"go.uber.org/zap"
)

// LedgerAuditService verifies the balance-consistency invariants: the
// community-wide net of all balances is zero, and every user's cached
// balance equals the signed sum of their exchange entries.
type LedgerAuditService struct {
	repo *repository.Repository
}

// NewLedgerAuditService creates a ledger audit service.
func NewLedgerAuditService(repo *repository.Repository) *LedgerAuditService {
	return &LedgerAuditService{repo: repo}
}

// Run checks the zero-sum property and then hunts for per-user drift.
func (s *LedgerAuditService) Run(ctx context.Context) error {
	net, err := s.repo.LedgerNet(ctx)
	if err != nil {
		return fmt.Errorf("run ledger net query: %w", err)
	}

	if net != 0 {
		observability.IncrementBalanceDrift()
		zap.L().Error("CRITICAL: community ledger net is nonzero", zap.Int64("net_micros", net))
	}

	drifts, err := s.repo.BalanceDrifts(ctx)
	if err != nil {
		return fmt.Errorf("run balance drift query: %w", err)
	}
	for _, d := range drifts {
		observability.IncrementBalanceDrift()
		zap.L().Error("balance drift detected",
			zap.String("user_id", d.UserID.String()),
			zap.String("username", d.Username),
			zap.Int64("cached_micros", d.Balance.Micros()),
			zap.Int64("ledger_micros", d.LedgerNet.Micros()))
	}

	if net == 0 && len(drifts) == 0 {
		zap.L().Info("Ledger Balanced")
	}
	return nil
}
