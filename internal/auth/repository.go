package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tarot-api/internal/apperr"
	"tarot-api/internal/db"
)

// Repository owns the users and auth_refresh_tokens tables. Refresh tokens
// are stored as SHA-256 hashes of the opaque value, never as plaintext.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertUser inserts the user on first login and overwrites email, name and
// lang on every later one. Last login wins; there is no merge.
func (r *Repository) UpsertUser(ctx context.Context, sub, email, name, lang string) (User, error) {
	if lang == "" {
		lang = "hu"
	}

	var user User
	var lastDraw sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (sub, email, name, lang, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sub) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			lang = EXCLUDED.lang
		RETURNING sub, email, name, lang, created_at, last_draw_date
	`, sub, email, name, lang).Scan(&user.Sub, &user.Email, &user.Name, &user.Lang, &user.CreatedAt, &lastDraw)
	if err != nil {
		return User{}, db.StoreError("upsert user", err)
	}
	if lastDraw.Valid {
		value := lastDraw.Time.UTC()
		user.LastDrawDate = &value
	}

	return user, nil
}

func (r *Repository) GetUserBySubject(ctx context.Context, sub string) (User, error) {
	var user User
	var lastDraw sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT sub, email, name, lang, created_at, last_draw_date
		FROM users
		WHERE sub = $1
	`, sub).Scan(&user.Sub, &user.Email, &user.Name, &user.Lang, &user.CreatedAt, &lastDraw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.ErrUserNotFound
		}
		return User{}, db.StoreError("query user by sub", err)
	}
	if lastDraw.Valid {
		value := lastDraw.Time.UTC()
		user.LastDrawDate = &value
	}

	return user, nil
}

// MarkDrawn advances last_draw_date to today with a single guarded UPDATE, so
// two concurrent draws for the same user cannot both pass the once-per-day
// check. The winning draw is also recorded in daily_draws.
func (r *Repository) MarkDrawn(ctx context.Context, sub string, today time.Time, cardKey string) error {
	day := dateUTC(today)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.StoreError("begin draw tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET last_draw_date = $2::date
		WHERE sub = $1
		  AND (last_draw_date IS NULL OR last_draw_date < $2::date)
	`, sub, day)
	if err != nil {
		return db.StoreError("update last draw date", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return db.StoreError("draw rows affected", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE sub = $1)`, sub).Scan(&exists); err != nil {
			return db.StoreError("check user exists", err)
		}
		if !exists {
			return apperr.ErrUserNotFound
		}
		return apperr.ErrAlreadyDrawnToday
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_draws (user_sub, card_key, draw_date)
		VALUES ($1, $2, $3::date)
	`, sub, cardKey, day); err != nil {
		return db.StoreError("record daily draw", err)
	}

	if err := tx.Commit(); err != nil {
		return db.StoreError("commit draw tx", err)
	}

	return nil
}

// dateUTC pins a timestamp to its UTC calendar date as text. DATE parameters
// go over the wire as dates, never as timestamps the server would convert
// through its session timezone.
func dateUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (r *Repository) CreateRefreshToken(ctx context.Context, userSub, rawToken string, expiresAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate refresh token id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (id, user_sub, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, id.String(), userSub, hashToken(rawToken), expiresAt.UTC())
	if err != nil {
		return db.StoreError("insert refresh token", err)
	}

	return nil
}

// RotateRefreshToken atomically consumes the old token and persists the new
// one. The DELETE is the uniqueness point: whichever request removes the row
// wins, and a second use of the same value finds nothing.
func (r *Repository) RotateRefreshToken(ctx context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error) {
	newID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate rotated token id: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", db.StoreError("begin rotation tx", err)
	}
	defer tx.Rollback()

	var userSub string
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE token_hash = $1
		RETURNING user_sub, expires_at
	`, hashToken(rawOldToken)).Scan(&userSub, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.ErrInvalidRefreshToken
		}
		return "", db.StoreError("consume refresh token", err)
	}

	if time.Now().UTC().After(expiresAt.UTC()) {
		if err := tx.Commit(); err != nil {
			return "", db.StoreError("commit expired token removal", err)
		}
		return "", apperr.ErrRefreshTokenExpired
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (id, user_sub, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, newID.String(), userSub, hashToken(rawNewToken), newExpiresAt.UTC()); err != nil {
		return "", db.StoreError("insert rotated refresh token", err)
	}

	if err := tx.Commit(); err != nil {
		return "", db.StoreError("commit rotation tx", err)
	}

	return userSub, nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, rawToken string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE token_hash = $1
	`, hashToken(rawToken))
	if err != nil {
		return db.StoreError("delete refresh token", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return db.StoreError("delete rows affected", err)
	}
	if affected == 0 {
		return apperr.ErrInvalidRefreshToken
	}

	return nil
}

// CleanupStaleAuthData removes expired refresh tokens and old draw records in
// bounded batches so the sweep stays cheap on a serverless cron.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, drawRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if drawRetention <= 0 {
		drawRetention = 90 * 24 * time.Hour
	}

	deletedTokens, err := r.deleteExpiredRefreshTokens(ctx, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedDraws, err := r.deleteOldDrawRecords(ctx, time.Now().UTC().Add(-drawRetention), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedRefreshTokens: deletedTokens,
		DeletedDrawRecords:   deletedDraws,
	}, nil
}

func (r *Repository) deleteExpiredRefreshTokens(ctx context.Context, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_refresh_tokens
			WHERE expires_at < NOW()
			ORDER BY created_at ASC
			LIMIT $1
		)
		DELETE FROM auth_refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, batchSize)
	if err != nil {
		return 0, db.StoreError("delete expired refresh tokens", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, db.StoreError("expired refresh tokens rows affected", err)
	}

	return affected, nil
}

func (r *Repository) deleteOldDrawRecords(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM daily_draws
			WHERE draw_date < $1
			ORDER BY draw_date ASC
			LIMIT $2
		)
		DELETE FROM daily_draws t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, db.StoreError("delete old draw records", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, db.StoreError("old draw records rows affected", err)
	}

	return affected, nil
}

func hashToken(rawToken string) string {
	hash := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(hash[:])
}
