package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userRepo implements UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

func (r *userRepo) UpsertOAuthUser(ctx context.Context, subject, email string) (*User, error) {
	defer observeDB(ctx, "db.users.upsert")()

	const q = `INSERT INTO users (oauth_subject, email)
VALUES ($1, $2)
ON CONFLICT (oauth_subject)
DO UPDATE SET email = EXCLUDED.email, last_login_at = now()
RETURNING id::text, oauth_subject, email, created_at, last_login_at`

	var u User
	err := r.pool.QueryRow(ctx, q, subject, email).
		Scan(&u.ID, &u.OAuthSubject, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("upsert oauth user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*User, error) {
	defer observeDB(ctx, "db.users.get")()

	const q = `SELECT id::text, oauth_subject, email, created_at, last_login_at
FROM users WHERE id = $1::uuid`

	var u User
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.OAuthSubject, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// bookmarkRepo implements BookmarkRepository.
type bookmarkRepo struct {
	pool *pgxpool.Pool
}

func (r *bookmarkRepo) ListByUser(ctx context.Context, userID string) ([]Bookmark, error) {
	defer observeDB(ctx, "db.bookmarks.list")()

	const q = `SELECT id::text, user_id::text, title, url, created_at
FROM bookmarks WHERE user_id = $1::uuid
ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (r *bookmarkRepo) Create(ctx context.Context, userID, title, url string) (*Bookmark, error) {
	defer observeDB(ctx, "db.bookmarks.create")()

	const q = `INSERT INTO bookmarks (user_id, title, url)
VALUES ($1::uuid, $2, $3)
RETURNING id::text, user_id::text, title, url, created_at`

	var b Bookmark
	err := r.pool.QueryRow(ctx, q, userID, title, url).
		Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create bookmark: %w", err)
	}
	return &b, nil
}

func (r *bookmarkRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	defer observeDB(ctx, "db.bookmarks.delete")()

	// The user_id predicate is the ownership guard; deleting by id alone is
	// never allowed.
	const q = `DELETE FROM bookmarks WHERE id = $1::uuid AND user_id = $2::uuid`

	tag, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete bookmark %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// sessionRepo implements SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

func (r *sessionRepo) Create(ctx context.Context, s Session) error {
	defer observeDB(ctx, "db.sessions.create")()

	const q = `INSERT INTO sessions (id, user_id, expires_at, user_agent, ip_address)
VALUES ($1, $2::uuid, $3, $4, $5)`

	if _, err := r.pool.Exec(ctx, q, s.ID, s.UserID, s.ExpiresAt, s.UserAgent, s.IPAddress); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "db.sessions.get")()

	const q = `SELECT id, user_id::text, created_at, expires_at, last_seen_at, user_agent, ip_address
FROM sessions WHERE id = $1 AND expires_at > now()`

	var s Session
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt, &s.UserAgent, &s.IPAddress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.sessions.delete")()

	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *sessionRepo) TouchLastSeen(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.sessions.touch")()

	if _, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	defer observeDB(ctx, "db.sessions.delete_expired")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
