package ui

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/linkstash/internal/auth"
	httperrors "github.com/example/linkstash/internal/http/errors"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/store"
)

// CreateBookmark handles the add form. Blank fields are rejected before any
// database call; on failure the submitted values are carried back so the
// user can retry without retyping.
func (h *Handler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.BadRequest(h.log, w, r, err, "invalid form")
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	title := strings.TrimSpace(r.FormValue("title"))
	rawURL := strings.TrimSpace(r.FormValue("url"))

	if title == "" || rawURL == "" {
		h.redirect(w, r, "/dashboard", map[string]string{
			"error": "title and url are required",
			"title": title,
			"url":   rawURL,
		})
		return
	}

	if _, err := h.store.Bookmarks.Create(r.Context(), user.ID, title, normalizeURL(rawURL)); err != nil {
		h.log.Error("bookmark create failed", logger.Error(err))
		h.redirect(w, r, "/dashboard", map[string]string{
			"error": "failed to save bookmark",
			"title": title,
			"url":   rawURL,
		})
		return
	}

	h.cache.Invalidate(r.Context(), user.ID)
	h.redirect(w, r, "/dashboard", map[string]string{"status": "added"})
}

// DeleteBookmark removes a bookmark. The delete is always constrained by
// both id and current user id; a foreign id removes nothing and the list is
// left untouched.
func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httperrors.BadRequest(h.log, w, r, err, "invalid bookmark id")
		return
	}

	deleted, err := h.store.Bookmarks.Delete(r.Context(), id, user.ID)
	if err != nil {
		h.log.Error("bookmark delete failed", logger.Error(err))
		h.redirect(w, r, "/dashboard", map[string]string{"error": "failed to delete bookmark"})
		return
	}
	if !deleted {
		h.redirect(w, r, "/dashboard", map[string]string{"error": "bookmark not found"})
		return
	}

	h.cache.Invalidate(r.Context(), user.ID)
	h.redirect(w, r, "/dashboard", map[string]string{"status": "deleted"})
}

// ListBookmarksJSON serves the list consumed by the change-feed client. On
// error the client keeps whatever it last rendered.
func (h *Handler) ListBookmarksJSON(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	bookmarks, err := h.listBookmarks(r.Context(), user.ID)
	if err != nil {
		httperrors.Internal(h.log, w, r, err, "bookmark list failed")
		return
	}
	if bookmarks == nil {
		bookmarks = []store.Bookmark{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(bookmarks); err != nil {
		h.log.Error("bookmark list encode failed", logger.Error(err))
	}
}

// normalizeURL prepends https:// to any value lacking an explicit http or
// https scheme. No further validation is done; malformed hosts are stored
// as-is.
func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
