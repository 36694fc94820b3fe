package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, display_name, email, password_hash, biography, avatar, location,
	skills, needs, pebs_balance, role, is_active, last_active, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Biography,
		&u.Avatar, &u.Location, &u.Skills, &u.Needs, &u.PebsBalance, &u.Role, &u.IsActive,
		&u.LastActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, display_name, email, password_hash, biography, avatar,
			location, skills, needs, pebs_balance, role, is_active, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, TRUE, NOW(), NOW())
		RETURNING pebs_balance, is_active, last_active, created_at`
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.DisplayName, user.Email,
		user.PasswordHash, user.Biography, user.Avatar, user.Location, user.Skills, user.Needs, user.Role).
		Scan(&user.PebsBalance, &user.IsActive, &user.LastActive, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// UserProfileUpdate carries the optional profile fields; nil means unchanged.
type UserProfileUpdate struct {
	DisplayName *string
	Username    *string
	Biography   *string
	Location    *string
	Avatar      *string
	Skills      []string
	Needs       []string
}

func (r *Repository) UpdateUserProfile(ctx context.Context, id uuid.UUID, upd UserProfileUpdate) (*models.User, error) {
	query := `UPDATE users SET
			display_name = COALESCE($2, display_name),
			username     = COALESCE($3, username),
			biography    = COALESCE($4, biography),
			location     = COALESCE($5, location),
			avatar       = COALESCE($6, avatar),
			skills       = COALESCE($7, skills),
			needs        = COALESCE($8, needs),
			last_active  = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, upd.DisplayName, upd.Username, upd.Biography,
		upd.Location, upd.Avatar, upd.Skills, upd.Needs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

// UsernameTaken reports whether username belongs to a user other than excludeID.
func (r *Repository) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`,
		username, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// SearchUsers lists active users matching the optional search term against
// username, display name and biography.
func (r *Repository) SearchUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	pattern := "%" + search + "%"
	query := `SELECT ` + userColumns + ` FROM users
		WHERE is_active
		  AND ($1 = '' OR username ILIKE $2 OR display_name ILIKE $2 OR biography ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}

	var total int64
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users
		WHERE is_active
		  AND ($1 = '' OR username ILIKE $2 OR display_name ILIKE $2 OR biography ILIKE $2)`,
		search, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return users, total, nil
}

// UsersBelowBalance lists active users whose balance is below the threshold,
// most negative first. Used for the community-support surface.
func (r *Repository) UsersBelowBalance(ctx context.Context, threshold domain.Pebs, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE is_active AND pebs_balance < $1
		ORDER BY pebs_balance ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users below balance: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

// RandomActiveUsers picks up to limit active users excluding the given ids.
// Used for community check-in fan-out.
func (r *Repository) RandomActiveUsers(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE is_active AND NOT (id = ANY($1))
		ORDER BY last_active DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *Repository) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *Repository) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch last_active: %w", err)
	}
	return nil
}
