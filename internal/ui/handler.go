package ui

import (
	"context"
	"html/template"
	"net/http"

	"github.com/example/linkstash/internal/auth"
	"github.com/example/linkstash/internal/cache"
	"github.com/example/linkstash/internal/config"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/notify"
	"github.com/example/linkstash/internal/store"
)

// AuthService is the slice of the auth service the UI needs: resolving the
// current session on the landing page and tearing it down on logout.
type AuthService interface {
	CurrentUser(r *http.Request) (*store.User, bool)
	Logout(w http.ResponseWriter, r *http.Request)
}

// ListCache is the bookmark-list cache surface. Satisfied by
// *cache.BookmarkCache, including its nil (disabled) form.
type ListCache interface {
	Generation(userID string) uint64
	GetList(ctx context.Context, userID string) ([]store.Bookmark, bool)
	SetList(ctx context.Context, userID string, gen uint64, bookmarks []store.Bookmark)
	Invalidate(ctx context.Context, userID string)
}

// Handler serves the two server-rendered screens and the bookmark API.
type Handler struct {
	cfg   *config.Config
	store *store.Store
	auth  AuthService
	hub   *notify.Hub
	cache ListCache
	log   logger.Logger

	templates map[string]*template.Template
}

func NewHandler(cfg *config.Config, stor *store.Store, authService AuthService, hub *notify.Hub, listCache *cache.BookmarkCache, log logger.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     stor,
		auth:      authService,
		hub:       hub,
		cache:     listCache,
		log:       log,
		templates: templates,
	}
}

// Landing renders the sign-in screen, short-circuiting straight to the
// dashboard when a session already exists.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	data := h.withFlash(r, map[string]any{
		"Title": "Sign in",
	})
	h.render(w, r, "landing.html", data)
}

// Dashboard renders the bookmark list and add form. A fetch failure keeps
// the page usable and surfaces a message instead of a broken list.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	bookmarks, err := h.listBookmarks(r.Context(), user.ID)
	data := h.withFlash(r, map[string]any{
		"Title":     "Dashboard",
		"User":      user,
		"Bookmarks": bookmarks,
	})
	if err != nil {
		h.log.Error("bookmark list failed", logger.Error(err))
		data["FlashError"] = "failed to load bookmarks"
	}

	h.render(w, r, "dashboard.html", data)
}

// Logout invalidates the session and returns to the landing page. Safe to
// call without an active session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// listBookmarks consults the optional Redis cache before Postgres. The
// generation is loaded before the database read so a change committed and
// invalidated while the read was in flight keeps this list out of the cache.
func (h *Handler) listBookmarks(ctx context.Context, userID string) ([]store.Bookmark, error) {
	gen := h.cache.Generation(userID)

	if cached, ok := h.cache.GetList(ctx, userID); ok {
		return cached, nil
	}

	bookmarks, err := h.store.Bookmarks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	h.cache.SetList(ctx, userID, gen, bookmarks)
	return bookmarks, nil
}
