package repository

import (
	"context"
	"fmt"
)

// IdempotencyRow mirrors one row of the idempotency_keys table.
type IdempotencyRow struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	InProgress     bool
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
}

func (r *Repository) GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyRow, error) {
	row := &IdempotencyRow{}
	err := r.db.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, method, path, in_progress,
			COALESCE(response_status, 0), COALESCE(response_body, ''::bytea), COALESCE(content_type, '')
		FROM idempotency_keys
		WHERE idempotency_key = $1`, key).
		Scan(&row.IdempotencyKey, &row.RequestHash, &row.Method, &row.Path, &row.InProgress,
			&row.ResponseStatus, &row.ResponseBody, &row.ContentType)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ReserveIdempotencyKey claims a key for the in-flight request. Returns
// pgx.ErrNoRows via the underlying scan when the key is already taken.
func (r *Repository) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (string, error) {
	var reserved string
	err := r.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key`, key, requestHash, method, path).Scan(&reserved)
	if err != nil {
		return "", err
	}
	return reserved, nil
}

func (r *Repository) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int32, body []byte, contentType string) (*IdempotencyRow, error) {
	row := &IdempotencyRow{}
	err := r.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET in_progress = FALSE, response_status = $3, response_body = $4, content_type = $5
		WHERE idempotency_key = $1 AND request_hash = $2
		RETURNING idempotency_key, request_hash, method, path, in_progress,
			response_status, response_body, content_type`,
		key, requestHash, status, body, contentType).
		Scan(&row.IdempotencyKey, &row.RequestHash, &row.Method, &row.Path, &row.InProgress,
			&row.ResponseStatus, &row.ResponseBody, &row.ContentType)
	if err != nil {
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	return row, nil
}
