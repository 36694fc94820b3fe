package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/observability"
	"github.com/ripple-community/pebs-api/internal/repository"
	"go.uber.org/zap"
)

// ExchangeService owns the ledger-mutation core: recording an exchange applies
// its paired balance delta in the same database transaction that creates the
// entry, so the two sides can never be observed half-applied. Balances have no
// floor; going negative is a normal state of the mutual-aid ledger.
type ExchangeService struct {
	repo     *repository.Repository
	store    *repository.Store
	notifier *NotificationService
	stats    StatsWindow
}

// StatsWindow bounds the trailing window of the daily aggregate.
type StatsWindow struct {
	Days int
}

func NewExchangeService(repo *repository.Repository, store *repository.Store, notifier *NotificationService) *ExchangeService {
	return &ExchangeService{
		repo:     repo,
		store:    store,
		notifier: notifier,
		stats:    StatsWindow{Days: 30},
	}
}

// RecordExchangeCmd is one exchange intent as submitted by the initiator.
type RecordExchangeCmd struct {
	InitiatorID         uuid.UUID
	Direction           string
	CounterpartUsername string
	Description         string
	Category            string
	Amount              domain.Pebs
	Notes               string
	Location            string
	Images              []string
	ExchangeDate        time.Time
}

// Record validates the intent, then atomically creates the immutable entry and
// applies the paired delta: giver balance -= amount, receiver += amount, both
// inside one transaction with the user rows locked in sorted id order.
// Notification fan-out runs after commit and never rolls back the money.
func (s *ExchangeService) Record(ctx context.Context, cmd RecordExchangeCmd) (*models.Exchange, error) {
	if !domain.ValidDirection(cmd.Direction) {
		return nil, models.ErrInvalidDirection
	}
	if !domain.ValidCategory(cmd.Category) {
		return nil, models.ErrInvalidCategory
	}
	if cmd.Amount <= 0 {
		return nil, models.ErrNonPositiveAmount
	}

	initiator, err := s.repo.GetUser(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}
	counterpart, err := s.repo.GetUserByUsername(ctx, cmd.CounterpartUsername)
	if err != nil {
		return nil, err
	}
	if counterpart.ID == initiator.ID {
		return nil, models.ErrSelfExchange
	}

	exchangeDate := cmd.ExchangeDate
	if exchangeDate.IsZero() {
		exchangeDate = time.Now()
	}

	entry := &models.Exchange{
		ID:            uuid.New(),
		InitiatorID:   initiator.ID,
		CounterpartID: counterpart.ID,
		Direction:     cmd.Direction,
		Description:   cmd.Description,
		Category:      cmd.Category,
		AmountMicros:  cmd.Amount,
		Notes:         cmd.Notes,
		Location:      cmd.Location,
		Images:        cmd.Images,
		ExchangeDate:  exchangeDate,
	}
	giverID, receiverID := entry.Flow()

	err = s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		// Lock both user rows in a consistent order to prevent deadlocks
		// between concurrent exchanges over the same pair.
		firstID, secondID := initiator.ID, counterpart.ID
		if firstID.String() > secondID.String() {
			firstID, secondID = secondID, firstID
		}
		for _, id := range []uuid.UUID{firstID, secondID} {
			var locked uuid.UUID
			if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.ErrUserNotFound
				}
				return fmt.Errorf("lock user %s: %w", id, err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO exchanges (id, initiator_id, counterpart_id, direction, description, category,
				amount_micros, notes, location, images, is_confirmed, is_edited, exchange_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, FALSE, $11, NOW())`,
			entry.ID, entry.InitiatorID, entry.CounterpartID, entry.Direction, entry.Description,
			entry.Category, entry.AmountMicros, entry.Notes, entry.Location, entry.Images,
			entry.ExchangeDate); err != nil {
			return fmt.Errorf("insert exchange: %w", err)
		}

		// The paired delta. This is the only write path for balances.
		if _, err := tx.Exec(ctx,
			`UPDATE users SET pebs_balance = pebs_balance - $1 WHERE id = $2`,
			entry.AmountMicros, giverID); err != nil {
			return fmt.Errorf("debit giver: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET pebs_balance = pebs_balance + $1 WHERE id = $2`,
			entry.AmountMicros, receiverID); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementExchangeRecorded(entry.Category)

	amount := entry.AmountMicros.Micros()
	_, err = s.notifier.Notify(ctx, counterpart.ID,
		domain.NotifyExchangeReceived,
		"New Exchange Recorded",
		fmt.Sprintf("%s recorded an exchange with you.", initiator.DisplayName),
		models.NotificationData{
			ExchangeID:   &entry.ID,
			ActorID:      &initiator.ID,
			AmountMicros: &amount,
		},
		domain.PriorityMedium)
	if err != nil {
		// The entry and balances are committed; an undelivered notification is
		// a UX gap, not a ledger failure.
		zap.L().Warn("exchange notification failed",
			zap.Error(err), zap.String("exchange_id", entry.ID.String()))
	}

	return s.repo.GetExchange(ctx, entry.ID)
}

// Confirm transitions the entry from unconfirmed to confirmed. Only the
// counterpart has standing; the transition is terminal and race-safe: of two
// concurrent confirms exactly one wins and the other observes the conflict.
func (s *ExchangeService) Confirm(ctx context.Context, exchangeID, actorID uuid.UUID) (*models.Exchange, error) {
	var initiatorID uuid.UUID

	err := s.store.RunInTx(ctx, func(tx pgx.Tx) error {
		var counterpartID uuid.UUID
		var confirmed bool
		err := tx.QueryRow(ctx, `
			SELECT initiator_id, counterpart_id, is_confirmed
			FROM exchanges WHERE id = $1 FOR UPDATE`, exchangeID).
			Scan(&initiatorID, &counterpartID, &confirmed)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("lock exchange: %w", err)
		}
		if actorID != counterpartID {
			return models.ErrNotCounterpart
		}
		if confirmed {
			observability.IncrementConfirmConflict()
			return models.ErrAlreadyConfirmed
		}

		tag, err := tx.Exec(ctx,
			`UPDATE exchanges SET is_confirmed = TRUE WHERE id = $1 AND NOT is_confirmed`, exchangeID)
		if err != nil {
			return fmt.Errorf("confirm exchange: %w", err)
		}
		if tag.RowsAffected() != 1 {
			observability.IncrementConfirmConflict()
			return models.ErrAlreadyConfirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	actor, err := s.repo.GetUser(ctx, actorID)
	displayName := "The counterpart"
	if err == nil {
		displayName = actor.DisplayName
	}
	if _, err := s.notifier.Notify(ctx, initiatorID,
		domain.NotifyExchangeConfirmed,
		"Exchange Confirmed",
		fmt.Sprintf("%s confirmed your exchange.", displayName),
		models.NotificationData{ExchangeID: &exchangeID, ActorID: &actorID},
		domain.PriorityMedium); err != nil {
		zap.L().Warn("confirm notification failed",
			zap.Error(err), zap.String("exchange_id", exchangeID.String()))
	}

	return s.repo.GetExchange(ctx, exchangeID)
}

func (s *ExchangeService) Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	return s.repo.GetExchange(ctx, id)
}

// List pages the ledger with the given filter, newest entries first. Empty
// results are an empty page, never an error.
func (s *ExchangeService) List(ctx context.Context, f repository.ExchangeFilter, page, pageSize int) ([]models.Exchange, int64, error) {
	limit, offset := clampPage(page, pageSize)
	return s.repo.ListExchanges(ctx, f, limit, offset)
}

func (s *ExchangeService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Exchange, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ExchangesForUser(ctx, userID)
}

func (s *ExchangeService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Exchange, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return s.repo.RecentExchanges(ctx, userID, limit)
}

func (s *ExchangeService) StatsByCategory(ctx context.Context) ([]models.CategoryStat, error) {
	return s.repo.StatsByCategory(ctx)
}

func (s *ExchangeService) StatsOverTime(ctx context.Context, window time.Duration) ([]models.DailyStat, error) {
	if window <= 0 {
		window = time.Duration(s.stats.Days) * 24 * time.Hour
	}
	return s.repo.StatsDaily(ctx, window)
}

func (s *ExchangeService) Overall(ctx context.Context) (*models.OverallStats, error) {
	return s.repo.OverallStats(ctx)
}
