package store

import "context"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// UpsertOAuthUser inserts a user on first login or refreshes email and
	// last_login_at on subsequent logins, keyed by the OIDC subject.
	UpsertOAuthUser(ctx context.Context, subject, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// BookmarkRepository mediates all reads and writes of bookmarks. Every
// operation is scoped to an owning user id; there is no way to reach another
// user's rows through this interface.
type BookmarkRepository interface {
	// ListByUser returns the user's bookmarks ordered by created_at descending.
	ListByUser(ctx context.Context, userID string) ([]Bookmark, error)
	// Create inserts a bookmark; id and created_at are assigned by the database.
	Create(ctx context.Context, userID, title, url string) (*Bookmark, error)
	// Delete removes the row matching both id and userID. It reports whether
	// a row was actually deleted; a foreign or unknown id deletes nothing.
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// SessionRepository handles server-side web session rows.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	// GetByID returns the session only while it is unexpired.
	GetByID(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	TouchLastSeen(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
