package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ripple-community/pebs-api/internal/models"
)

const exchangeColumns = `e.id, e.initiator_id, e.counterpart_id, e.direction, e.description, e.category,
	e.amount_micros, e.notes, e.location, e.images, e.is_confirmed, e.is_edited,
	COALESCE(e.correction_notes, ''), e.exchange_date, e.created_at,
	i.id, i.username, i.display_name, i.avatar,
	c.id, c.username, c.display_name, c.avatar`

const exchangeJoins = `FROM exchanges e
	JOIN users i ON i.id = e.initiator_id
	JOIN users c ON c.id = e.counterpart_id`

func scanExchange(row pgx.Row) (*models.Exchange, error) {
	e := &models.Exchange{Initiator: &models.UserRef{}, Counterpart: &models.UserRef{}}
	err := row.Scan(&e.ID, &e.InitiatorID, &e.CounterpartID, &e.Direction, &e.Description, &e.Category,
		&e.AmountMicros, &e.Notes, &e.Location, &e.Images, &e.IsConfirmed, &e.IsEdited,
		&e.CorrectionNotes, &e.ExchangeDate, &e.CreatedAt,
		&e.Initiator.ID, &e.Initiator.Username, &e.Initiator.DisplayName, &e.Initiator.Avatar,
		&e.Counterpart.ID, &e.Counterpart.Username, &e.Counterpart.DisplayName, &e.Counterpart.Avatar)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Repository) GetExchange(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` ` + exchangeJoins + ` WHERE e.id = $1`
	e, err := scanExchange(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return e, nil
}

// ExchangeFilter narrows exchange listings. Zero values mean "no filter".
type ExchangeFilter struct {
	ParticipantID uuid.UUID // matches either side of the exchange
	Category      string
	From          time.Time
	To            time.Time
	Confirmed     *bool
}

// ListExchanges returns a page of exchanges sorted by creation time descending,
// together with the total count for the filter.
func (r *Repository) ListExchanges(ctx context.Context, f ExchangeFilter, limit, offset int) ([]models.Exchange, int64, error) {
	where := `WHERE ($1::uuid IS NULL OR e.initiator_id = $1 OR e.counterpart_id = $1)
		  AND ($2 = '' OR e.category = $2)
		  AND ($3::timestamptz IS NULL OR e.exchange_date >= $3)
		  AND ($4::timestamptz IS NULL OR e.exchange_date <= $4)
		  AND ($5::boolean IS NULL OR e.is_confirmed = $5)`

	var participant *uuid.UUID
	if f.ParticipantID != uuid.Nil {
		participant = &f.ParticipantID
	}
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}

	query := `SELECT ` + exchangeColumns + ` ` + exchangeJoins + ` ` + where + `
		ORDER BY e.created_at DESC
		LIMIT $6 OFFSET $7`
	rows, err := r.db.Query(ctx, query, participant, f.Category, from, to, f.Confirmed, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	items := []models.Exchange{}
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan exchange: %w", err)
		}
		items = append(items, *e)
	}

	var total int64
	countQuery := `SELECT COUNT(*) ` + exchangeJoins + ` ` + where
	err = r.db.QueryRow(ctx, countQuery, participant, f.Category, from, to, f.Confirmed).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return items, total, nil
}

// ExchangesForUser lists every exchange the user participates in, newest
// exchange date first.
func (r *Repository) ExchangesForUser(ctx context.Context, userID uuid.UUID) ([]models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` ` + exchangeJoins + `
		WHERE e.initiator_id = $1 OR e.counterpart_id = $1
		ORDER BY e.exchange_date DESC`
	return r.queryExchanges(ctx, query, userID)
}

// RecentExchanges lists the user's most recently recorded exchanges.
func (r *Repository) RecentExchanges(ctx context.Context, userID uuid.UUID, limit int) ([]models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` ` + exchangeJoins + `
		WHERE e.initiator_id = $1 OR e.counterpart_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`
	return r.queryExchanges(ctx, query, userID, limit)
}

func (r *Repository) queryExchanges(ctx context.Context, query string, args ...any) ([]models.Exchange, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	items := []models.Exchange{}
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		items = append(items, *e)
	}
	return items, nil
}

// StatsByCategory aggregates count and summed amount per category over the
// whole ledger. Recomputed per call; there is no materialized view.
func (r *Repository) StatsByCategory(ctx context.Context) ([]models.CategoryStat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(amount_micros), 0)
		FROM exchanges
		GROUP BY category
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by category: %w", err)
	}
	defer rows.Close()

	stats := []models.CategoryStat{}
	for rows.Next() {
		var s models.CategoryStat
		if err := rows.Scan(&s.Category, &s.Count, &s.TotalMicros); err != nil {
			return nil, fmt.Errorf("failed to scan category stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// StatsDaily aggregates count and summed amount per day within the trailing
// window, oldest day first. Days without exchanges are omitted.
func (r *Repository) StatsDaily(ctx context.Context, window time.Duration) ([]models.DailyStat, error) {
	since := time.Now().Add(-window)
	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', exchange_date) AS day, COUNT(*), COALESCE(SUM(amount_micros), 0)
		FROM exchanges
		WHERE exchange_date >= $1
		GROUP BY day
		ORDER BY day ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyStat{}
	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.Day, &s.Count, &s.TotalMicros); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// OverallStats returns ledger-wide count, sum and average amount.
func (r *Repository) OverallStats(ctx context.Context) (*models.OverallStats, error) {
	s := &models.OverallStats{}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount_micros), 0), COALESCE(AVG(amount_micros), 0)::bigint
		FROM exchanges`).Scan(&s.TotalExchanges, &s.TotalMicros, &s.AverageMicros)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate overall stats: %w", err)
	}
	return s, nil
}
