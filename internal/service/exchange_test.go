package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/presence"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExchangeService(store *repository.Store, repo *repository.Repository) (*ExchangeService, *NotificationService) {
	notifier := NewNotificationService(repo, presence.NewMemory())
	return NewExchangeService(repo, store, notifier), notifier
}

func TestRecordExchangeProvidedMovesPebs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	// Ama provided value, so she is the giver and pays pebs to Kofi.
	exchange, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Fixed the garden fence",
		Category:            "repairs-maintenance",
		Amount:              domain.PebsFromInt(25),
	})
	require.NoError(t, err)
	require.NotNil(t, exchange)

	assert.Equal(t, ama.ID, exchange.InitiatorID)
	assert.Equal(t, kofi.ID, exchange.CounterpartID)
	assert.False(t, exchange.IsConfirmed)
	require.NotNil(t, exchange.Counterpart)
	assert.Equal(t, "kofi", exchange.Counterpart.Username)

	assert.Equal(t, int64(-25_000_000), balanceOf(t, db, ama.ID))
	assert.Equal(t, int64(25_000_000), balanceOf(t, db, kofi.ID))
}

func TestRecordExchangeReceivedMovesPebsTheOtherWay(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	// Ama received value, so Kofi is the giver.
	_, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionReceived,
		CounterpartUsername: "kofi",
		Description:         "Weekly veg box",
		Category:            "food-necessities",
		Amount:              domain.PebsFromInt(10),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10_000_000), balanceOf(t, db, ama.ID))
	assert.Equal(t, int64(-10_000_000), balanceOf(t, db, kofi.ID))
}

func TestRecordExchangeZeroSum(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	newMember(t, repo, "ama")
	newMember(t, repo, "kofi")
	esi := newMember(t, repo, "esi")

	for i := 0; i < 5; i++ {
		_, err := svc.Record(ctx, RecordExchangeCmd{
			InitiatorID:         esi.ID,
			Direction:           domain.DirectionProvided,
			CounterpartUsername: []string{"ama", "kofi"}[i%2],
			Description:         "Childcare afternoon",
			Category:            "care-work",
			Amount:              domain.PebsFromInt(int64(i + 1)),
		})
		require.NoError(t, err)
	}

	net, err := repo.LedgerNet(ctx)
	require.NoError(t, err)
	assert.Zero(t, net, "every exchange is a paired delta so the community nets to zero")

	drifts, err := repo.BalanceDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRecordExchangeValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	base := RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Bike repair",
		Category:            "repairs-maintenance",
		Amount:              domain.PebsFromInt(5),
	}

	bad := base
	bad.Direction = "sideways"
	_, err := svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrInvalidDirection)

	bad = base
	bad.Category = "smuggling"
	_, err = svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrInvalidCategory)

	bad = base
	bad.Amount = 0
	_, err = svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrNonPositiveAmount)

	bad = base
	bad.Amount = domain.PebsFromInt(-5)
	_, err = svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrNonPositiveAmount)

	bad = base
	bad.CounterpartUsername = "ama"
	_, err = svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrSelfExchange)

	bad = base
	bad.CounterpartUsername = "nobody"
	_, err = svc.Record(ctx, bad)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	// Nothing above may have moved pebs.
	assert.Zero(t, balanceOf(t, db, ama.ID))
}

func TestRecordExchangeNotifiesCounterpart(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, notifier := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	exchange, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Guitar lesson",
		Category:            "knowledge-teaching",
		Amount:              domain.PebsFromInt(15),
	})
	require.NoError(t, err)

	notifications, total, err := notifier.ListForUser(ctx, kofi.ID, false, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	n := notifications[0]
	assert.Equal(t, domain.NotifyExchangeReceived, n.Type)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.Data.ExchangeID)
	assert.Equal(t, exchange.ID, *n.Data.ExchangeID)
	require.NotNil(t, n.Data.AmountMicros)
	assert.Equal(t, int64(15_000_000), *n.Data.AmountMicros)

	// The initiator gets nothing until the counterpart confirms.
	_, total, err = notifier.ListForUser(ctx, ama.ID, false, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestConfirmExchange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, notifier := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	exchange, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Sourdough starter and a loaf",
		Category:            "food-necessities",
		Amount:              domain.PebsFromInt(3),
	})
	require.NoError(t, err)

	// The initiator has no standing to confirm their own entry.
	_, err = svc.Confirm(ctx, exchange.ID, ama.ID)
	assert.ErrorIs(t, err, models.ErrNotCounterpart)

	confirmed, err := svc.Confirm(ctx, exchange.ID, kofi.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed)

	// Confirmation is terminal.
	_, err = svc.Confirm(ctx, exchange.ID, kofi.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyConfirmed)

	// Balances moved at record time, not confirm time.
	assert.Equal(t, int64(-3_000_000), balanceOf(t, db, ama.ID))

	notifications, _, err := notifier.ListForUser(ctx, ama.ID, true, 1, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotifyExchangeConfirmed, notifications[0].Type)
}

func TestConfirmExchangeConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	exchange, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Moving help",
		Category:            "services-skills",
		Amount:              domain.PebsFromInt(20),
	})
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Confirm(ctx, exchange.ID, kofi.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, models.ErrAlreadyConfirmed)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent confirm may win")
}

func TestConcurrentRecordsOverSamePair(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	// Opposite initiators over the same pair; sorted lock order keeps this
	// deadlock-free and every delta lands.
	const perSide = 5
	var wg sync.WaitGroup
	errCh := make(chan error, perSide*2)
	for i := 0; i < perSide; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Record(ctx, RecordExchangeCmd{
				InitiatorID:         ama.ID,
				Direction:           domain.DirectionProvided,
				CounterpartUsername: "kofi",
				Description:         "Herb bundle",
				Category:            "physical-goods",
				Amount:              domain.PebsFromInt(1),
			})
			errCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Record(ctx, RecordExchangeCmd{
				InitiatorID:         kofi.ID,
				Direction:           domain.DirectionProvided,
				CounterpartUsername: "ama",
				Description:         "Fresh eggs",
				Category:            "food-necessities",
				Amount:              domain.PebsFromInt(1),
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Equal flow both ways cancels out.
	assert.Zero(t, balanceOf(t, db, ama.ID))
	assert.Zero(t, balanceOf(t, db, kofi.ID))

	net, err := repo.LedgerNet(ctx)
	require.NoError(t, err)
	assert.Zero(t, net)
}

func TestNegativeBalancesAreAllowed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	// No funds check: receiving support before giving is the whole point.
	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, RecordExchangeCmd{
			InitiatorID:         ama.ID,
			Direction:           domain.DirectionReceived,
			CounterpartUsername: "kofi",
			Description:         "Groceries run",
			Category:            "food-necessities",
			Amount:              domain.PebsFromInt(40),
		})
		require.NoError(t, err)
	}

	kofi, err := repo.GetUserByUsername(ctx, "kofi")
	require.NoError(t, err)
	assert.Equal(t, int64(-120_000_000), kofi.PebsBalance.Micros())
	assert.Equal(t, "needs-support", kofi.BalanceStatus())
}

func TestExchangeStats(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	for _, amount := range []int64{2, 4, 6} {
		_, err := svc.Record(ctx, RecordExchangeCmd{
			InitiatorID:         ama.ID,
			Direction:           domain.DirectionProvided,
			CounterpartUsername: "kofi",
			Description:         "Tutoring hour",
			Category:            "knowledge-teaching",
			Amount:              domain.PebsFromInt(amount),
		})
		require.NoError(t, err)
	}

	byCategory, err := svc.StatsByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "knowledge-teaching", byCategory[0].Category)
	assert.EqualValues(t, 3, byCategory[0].Count)
	assert.Equal(t, int64(12_000_000), byCategory[0].TotalMicros.Micros())

	overall, err := svc.Overall(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, overall.TotalExchanges)
	assert.Equal(t, int64(12_000_000), overall.TotalMicros.Micros())
	assert.Equal(t, int64(4_000_000), overall.AverageMicros.Micros())

	daily, err := svc.StatsOverTime(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.EqualValues(t, 3, daily[0].Count)
}

func TestLedgerAuditDetectsDrift(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc, _ := newExchangeService(repository.NewStore(db), repo)
	audit := NewLedgerAuditService(repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	_, err := svc.Record(ctx, RecordExchangeCmd{
		InitiatorID:         ama.ID,
		Direction:           domain.DirectionProvided,
		CounterpartUsername: "kofi",
		Description:         "Roof patch",
		Category:            "repairs-maintenance",
		Amount:              domain.PebsFromInt(30),
	})
	require.NoError(t, err)

	require.NoError(t, audit.Run(ctx))
	drifts, err := repo.BalanceDrifts(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Corrupt a cached balance behind the ledger's back.
	_, err = db.Exec(ctx, "UPDATE users SET pebs_balance = pebs_balance + 1 WHERE id = $1", ama.ID)
	require.NoError(t, err)

	drifts, err = repo.BalanceDrifts(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, ama.ID, drifts[0].UserID)
	assert.Equal(t, int64(-30_000_000), drifts[0].LedgerNet.Micros())
	require.NoError(t, audit.Run(ctx))
}
