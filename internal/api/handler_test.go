package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ripple-community/pebs-api/internal/api"
	"github.com/ripple-community/pebs-api/internal/api/middleware"
	"github.com/ripple-community/pebs-api/internal/config"
	"github.com/ripple-community/pebs-api/internal/idempotency"
	"github.com/ripple-community/pebs-api/internal/models"
	"github.com/ripple-community/pebs-api/internal/presence"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/ripple-community/pebs-api/internal/service"
	"github.com/ripple-community/pebs-api/internal/testutil/dblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "pebs-api-test"
	testJWTAudience = "pebs-api-test"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	code := m.Run()
	release()
	os.Exit(code)
}

// setupTestDB connects to the local Postgres instance, ensures the schema and
// truncates all tables. Integration tests are skipped when DATABASE_URL is
// not set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	ensureSchema(t, db)

	for _, table := range []string{"idempotency_keys", "activity_responses", "community_activities", "notifications", "exchanges", "users"} {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := db.Exec(context.Background(), stmt); err != nil {
			if strings.Contains(err.Error(), "does not exist") {
				continue
			}
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}

	return db
}

func ensureSchema(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	sql := `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			biography TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			needs TEXT[] NOT NULL DEFAULT '{}',
			pebs_balance BIGINT NOT NULL DEFAULT 0,
			role TEXT NOT NULL DEFAULT 'user',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS exchanges (
			id UUID PRIMARY KEY,
			initiator_id UUID NOT NULL REFERENCES users (id),
			counterpart_id UUID NOT NULL REFERENCES users (id),
			direction TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			amount_micros BIGINT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			images TEXT[] NOT NULL DEFAULT '{}',
			is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			correction_notes TEXT,
			exchange_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			recipient_id UUID NOT NULL REFERENCES users (id),
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			priority TEXT NOT NULL DEFAULT 'medium',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS idempotency_keys (
			idempotency_key TEXT PRIMARY KEY,
			request_hash TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			in_progress BOOLEAN NOT NULL DEFAULT TRUE,
			response_status INT,
			response_body BYTEA,
			content_type TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	if _, err := db.Exec(context.Background(), sql); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
}

func setupAPI(db *pgxpool.Pool) http.Handler {
	repo := repository.NewRepository(db)
	live := presence.NewMemory()
	notifier := service.NewNotificationService(repo, live)
	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
	}
	idemStore := idempotency.NewStore(nil, repo, cfg.IdempotencyTTL)
	return api.NewRouter(cfg, zap.NewNop(), db, repo, idemStore, nil, notifier, live).Routes()
}

func newMember(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         "user",
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func generateTestToken(userID uuid.UUID) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    "user",
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"sub":     userID.String(),
		"iat":     now.Unix(),
		"nbf":     now.Add(-30 * time.Second).Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString(middleware.JWTSecret())
	return signed
}

func balanceOf(t *testing.T, db *pgxpool.Pool, userID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(context.Background(),
		"SELECT pebs_balance FROM users WHERE id = $1", userID).Scan(&balance)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	return balance
}

func recordExchangeRequest(token, key string, body []byte) *http.Request {
	req := httptest.NewRequest("POST", "/v1/exchanges", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestRecordExchangeIdempotentReplay(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	router := setupAPI(db)

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")

	body, _ := json.Marshal(map[string]interface{}{
		"counterpart_username": "kofi",
		"direction":            "provided",
		"description":          "Bike repair",
		"category":             "services-skills",
		"amount":               20,
	})
	key := uuid.New().String()
	token := generateTestToken(ama.ID)

	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, recordExchangeRequest(token, key, body))
	require.Equal(t, http.StatusCreated, w1.Code)

	var recorded models.Exchange
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &recorded))
	require.NotEqual(t, uuid.Nil, recorded.ID)

	// The retry replays the stored response and moves no pebs.
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, recordExchangeRequest(token, key, body))
	require.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, w1.Body.Bytes(), w2.Body.Bytes())
	assert.NotEmpty(t, w2.Header().Get("X-Idempotent-Replay"))

	assert.Equal(t, int64(-20_000_000), balanceOf(t, db, ama.ID))
	assert.Equal(t, int64(20_000_000), balanceOf(t, db, kofi.ID))

	var entries int
	require.NoError(t, db.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM exchanges").Scan(&entries))
	assert.Equal(t, 1, entries)
}

func TestRecordExchangeIdempotencyKeyBoundToMember(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	router := setupAPI(db)

	ama := newMember(t, repo, "ama")
	kofi := newMember(t, repo, "kofi")
	esi := newMember(t, repo, "esi")

	body, _ := json.Marshal(map[string]interface{}{
		"counterpart_username": "esi",
		"direction":            "provided",
		"description":          "Garden help",
		"category":             "services-skills",
		"amount":               10,
	})
	key := uuid.New().String()

	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, recordExchangeRequest(generateTestToken(ama.ID), key, body))
	require.Equal(t, http.StatusCreated, w1.Code)

	// The same key from another member conflicts instead of replaying
	// Ama's stored response.
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, recordExchangeRequest(generateTestToken(kofi.ID), key, body))
	require.Equal(t, http.StatusConflict, w2.Code)
	assert.Contains(t, w2.Header().Get("Content-Type"), "application/problem+json")

	assert.Equal(t, int64(0), balanceOf(t, db, kofi.ID))
	assert.Equal(t, int64(10_000_000), balanceOf(t, db, esi.ID))
}

func TestRecordExchangeRequiresIdempotencyKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := repository.NewRepository(db)
	router := setupAPI(db)

	ama := newMember(t, repo, "ama")
	newMember(t, repo, "kofi")

	body, _ := json.Marshal(map[string]interface{}{
		"counterpart_username": "kofi",
		"direction":            "provided",
		"description":          "Firewood",
		"category":             "physical-goods",
		"amount":               5,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, recordExchangeRequest(generateTestToken(ama.ID), "", body))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), balanceOf(t, db, ama.ID))
}
