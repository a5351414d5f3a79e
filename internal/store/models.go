package store

import "time"

// User represents a person authenticated via the OIDC provider. The
// oauth_subject column carries the provider's stable subject claim.
type User struct {
	ID           string
	OAuthSubject string
	Email        string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Bookmark is a saved link owned by exactly one user. Bookmarks are immutable
// after creation except for deletion.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a server-side web session row. The ID doubles as the opaque
// token carried in the session cookie.
type Session struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
	UserAgent  *string
	IPAddress  *string
}
