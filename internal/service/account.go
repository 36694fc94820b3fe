package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AccountService covers registration, authentication and the member
// directory. It never writes balances; those belong to the exchange
// transaction alone.
type AccountService struct {
	repo *repository.Repository
}

func NewAccountService(repo *repository.Repository) *AccountService {
	return &AccountService{repo: repo}
}

type RegisterCmd struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
	Biography   string
	Location    string
	Skills      []string
	Needs       []string
}

// Register creates a member with a zero balance.
func (s *AccountService) Register(ctx context.Context, cmd RegisterCmd) (*models.User, error) {
	cmd.Username = strings.TrimSpace(cmd.Username)
	cmd.Email = strings.ToLower(strings.TrimSpace(cmd.Email))

	if _, err := s.repo.GetUserByUsername(ctx, cmd.Username); err == nil {
		return nil, models.ErrUsernameTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetUserByEmail(ctx, cmd.Email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     cmd.Username,
		DisplayName:  cmd.DisplayName,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		Biography:    cmd.Biography,
		Avatar:       "default-avatar.png",
		Location:     cmd.Location,
		Skills:       cmd.Skills,
		Needs:        cmd.Needs,
		Role:         domain.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and returns the user on success.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, models.ErrInvalidCredentials
	}
	_ = s.repo.TouchLastActive(ctx, user.ID)
	return user, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetByUsername is the directory lookup resolving a handle to a member.
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, upd repository.UserProfileUpdate) (*models.User, error) {
	if upd.Username != nil {
		taken, err := s.repo.UsernameTaken(ctx, *upd.Username, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.ErrUsernameTaken
		}
	}
	return s.repo.UpdateUserProfile(ctx, id, upd)
}

func (s *AccountService) Search(ctx context.Context, search string, page, pageSize int) ([]models.User, int64, error) {
	limit, offset := clampPage(page, pageSize)
	return s.repo.SearchUsers(ctx, search, limit, offset)
}

func (s *AccountService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeactivateUser(ctx, id)
}

// UsersNeedingSupport lists active members below the attention threshold,
// most negative balance first.
func (s *AccountService) UsersNeedingSupport(ctx context.Context, limit int) ([]models.User, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.repo.UsersBelowBalance(ctx, domain.PebsFromInt(domain.AttentionBelowPebs), limit)
}
