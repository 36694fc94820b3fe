package service

import (
	"context"
	"testing"

	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewAccountService(repository.NewRepository(db))
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterCmd{
		Username:    "ama",
		DisplayName: "Ama Mensah",
		Email:       "  Ama@Example.Com ",
		Password:    "garden-gate-42",
		Location:    "Riverside",
		Skills:      []string{"carpentry"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ama@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Zero(t, user.PebsBalance.Micros(), "new members start at zero")
	assert.NotEqual(t, "garden-gate-42", user.PasswordHash)

	authed, err := svc.Authenticate(ctx, "ama@example.com", "garden-gate-42")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "ama@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewAccountService(repository.NewRepository(db))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCmd{
		Username: "ama", DisplayName: "Ama", Email: "ama@example.com", Password: "pw-one-two-3",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterCmd{
		Username: "ama", DisplayName: "Other", Email: "other@example.com", Password: "pw-one-two-3",
	})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterCmd{
		Username: "other", DisplayName: "Other", Email: "ama@example.com", Password: "pw-one-two-3",
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	taken := "kofi"
	_, err := svc.UpdateProfile(ctx, ama.ID, repository.UserProfileUpdate{Username: &taken})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	bio := "Fixing bikes most weekends."
	updated, err := svc.UpdateProfile(ctx, ama.ID, repository.UserProfileUpdate{Biography: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Biography)
	assert.Equal(t, "ama", updated.Username, "unset fields stay as they were")
}

func TestDeactivateHidesUserFromDirectory(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	svc := NewAccountService(repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	require.NoError(t, svc.Deactivate(ctx, ama.ID))

	users, total, err := svc.Search(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "kofi", users[0].Username)
}

func TestUsersNeedingSupportOrdering(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	accountSvc := NewAccountService(repo)
	exchangeSvc, _ := newExchangeService(repository.NewStore(db), repo)
	ctx := context.Background()

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")
	newMember(t, repo, "esi")

	// Ama ends at -60 pebs, Kofi at -120; Esi stays comfortably positive.
	_, err := exchangeSvc.Record(ctx, RecordExchangeCmd{
		InitiatorID: ama.ID, Direction: domain.DirectionReceived,
		CounterpartUsername: "esi", Description: "Winter firewood",
		Category: "physical-goods", Amount: domain.PebsFromInt(60),
	})
	require.NoError(t, err)
	_, err = exchangeSvc.Record(ctx, RecordExchangeCmd{
		InitiatorID: kofi.ID, Direction: domain.DirectionReceived,
		CounterpartUsername: "esi", Description: "Roof repair",
		Category: "repairs-maintenance", Amount: domain.PebsFromInt(120),
	})
	require.NoError(t, err)

	users, err := accountSvc.UsersNeedingSupport(ctx, 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "kofi", users[0].Username, "most negative first")
	assert.Equal(t, "ama", users[1].Username)
	assert.Equal(t, "needs-support", users[0].BalanceStatus())
	assert.Equal(t, "attention", users[1].BalanceStatus())
}
