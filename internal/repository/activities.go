package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ripple-community/pebs-api/internal/domain"
	"github.com/ripple-community/pebs-api/internal/models"
)

const activityColumns = `a.id, a.activity_type, a.initiator_id, a.target_user_id, a.title, a.description,
	a.status, a.location, a.tags, a.start_date, a.end_date, a.is_public, a.created_at,
	i.id, i.username, i.display_name, i.avatar`

const activityJoins = `FROM community_activities a JOIN users i ON i.id = a.initiator_id`

func scanActivity(row pgx.Row) (*models.CommunityActivity, error) {
	a := &models.CommunityActivity{Initiator: &models.UserRef{}}
	err := row.Scan(&a.ID, &a.ActivityType, &a.InitiatorID, &a.TargetUserID, &a.Title, &a.Description,
		&a.Status, &a.Location, &a.Tags, &a.StartDate, &a.EndDate, &a.IsPublic, &a.CreatedAt,
		&a.Initiator.ID, &a.Initiator.Username, &a.Initiator.DisplayName, &a.Initiator.Avatar)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) CreateActivity(ctx context.Context, a *models.CommunityActivity) error {
	query := `INSERT INTO community_activities
			(id, activity_type, initiator_id, target_user_id, title, description, status, location,
			 tags, start_date, end_date, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query, a.ID, a.ActivityType, a.InitiatorID, a.TargetUserID, a.Title,
		a.Description, domain.ActivityStatusActive, a.Location, a.Tags, a.StartDate, a.EndDate, a.IsPublic).
		Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	a.Status = domain.ActivityStatusActive
	return nil
}

func (r *Repository) GetActivity(ctx context.Context, id uuid.UUID) (*models.CommunityActivity, error) {
	query := `SELECT ` + activityColumns + ` ` + activityJoins + ` WHERE a.id = $1`
	a, err := scanActivity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	responses, err := r.ListActivityResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Responses = responses
	return a, nil
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	ActivityType   string
	Status         string
	TargetUserID   uuid.UUID
	IncludePrivate bool
}

func (r *Repository) ListActivities(ctx context.Context, f ActivityFilter, limit, offset int) ([]models.CommunityActivity, int64, error) {
	where := `WHERE ($1 = '' OR a.activity_type = $1)
		  AND ($2 = '' OR a.status = $2)
		  AND ($3::uuid IS NULL OR a.target_user_id = $3)
		  AND ($4 OR a.is_public)`

	var target *uuid.UUID
	if f.TargetUserID != uuid.Nil {
		target = &f.TargetUserID
	}

	query := `SELECT ` + activityColumns + ` ` + activityJoins + ` ` + where + `
		ORDER BY a.created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := r.db.Query(ctx, query, f.ActivityType, f.Status, target, f.IncludePrivate, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	items := []models.CommunityActivity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		items = append(items, *a)
	}

	var total int64
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) `+activityJoins+` `+where,
		f.ActivityType, f.Status, target, f.IncludePrivate).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return items, total, nil
}

// UpsertActivityResponse inserts or replaces the member's single response to an
// activity. The (activity_id, user_id) primary key makes "one response per
// user" a schema invariant rather than a scan-and-replace convention.
func (r *Repository) UpsertActivityResponse(ctx context.Context, resp *models.ActivityResponse) error {
	query := `INSERT INTO activity_responses (activity_id, user_id, response, response_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (activity_id, user_id)
		DO UPDATE SET response = EXCLUDED.response, response_type = EXCLUDED.response_type, created_at = NOW()
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query, resp.ActivityID, resp.UserID, resp.Response, resp.ResponseType).
		Scan(&resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert activity response: %w", err)
	}
	return nil
}

func (r *Repository) ListActivityResponses(ctx context.Context, activityID uuid.UUID) ([]models.ActivityResponse, error) {
	query := `SELECT ar.activity_id, ar.user_id, ar.response, ar.response_type, ar.created_at,
			u.id, u.username, u.display_name, u.avatar
		FROM activity_responses ar
		JOIN users u ON u.id = ar.user_id
		WHERE ar.activity_id = $1
		ORDER BY ar.created_at ASC`
	rows, err := r.db.Query(ctx, query, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity responses: %w", err)
	}
	defer rows.Close()

	responses := []models.ActivityResponse{}
	for rows.Next() {
		resp := models.ActivityResponse{User: &models.UserRef{}}
		if err := rows.Scan(&resp.ActivityID, &resp.UserID, &resp.Response, &resp.ResponseType,
			&resp.CreatedAt, &resp.User.ID, &resp.User.Username, &resp.User.DisplayName,
			&resp.User.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan activity response: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// UpdateActivityStatus transitions an activity out of the active state.
// Returns the number of rows changed so the caller can distinguish a lost
// race from success.
func (r *Repository) UpdateActivityStatus(ctx context.Context, id uuid.UUID, from, to string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE community_activities SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to update activity status: %w", err)
	}
	return tag.RowsAffected(), nil
}
