package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/example/linkstash/internal/config"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/store"
)

const stateCookieName = "linkstash_oauth_state"

// Service encapsulates the OIDC login flow and session enforcement.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	sessions *SessionManager
	log      logger.Logger

	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewService performs OIDC discovery against the configured issuer and wires
// the authorization-code flow.
func NewService(ctx context.Context, cfg *config.Config, stor *store.Store, sessions *SessionManager, log logger.Logger) (*Service, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OAuth.IssuerURL)
	if err != nil {
		return nil, err
	}

	redirectURL := strings.TrimRight(cfg.BaseURL, "/") + cfg.OAuth.RedirectPath

	return &Service{
		cfg:      cfg,
		store:    stor,
		sessions: sessions,
		log:      log,
		oauth: oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
	}, nil
}

// BeginOAuth starts the authorization-code flow. The state nonce lives in a
// short-lived cookie; nothing else is held locally across the redirect.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback validates state, exchanges the code, verifies the ID
// token, upserts the user, and starts a session ending on the dashboard.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		s.failLogin(w, r, "state mismatch", err)
		return
	}
	// One-shot nonce.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		s.failLogin(w, r, "missing authorization code", nil)
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.failLogin(w, r, "code exchange failed", err)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.failLogin(w, r, "token response missing id_token", nil)
		return
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.failLogin(w, r, "id token verification failed", err)
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		s.failLogin(w, r, "claims parse failed", err)
		return
	}

	user, err := s.store.Users.UpsertOAuthUser(ctx, idToken.Subject, claims.Email)
	if err != nil {
		s.failLogin(w, r, "user upsert failed", err)
		return
	}

	sess := store.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(SessionTTL),
		UserAgent: optional(r.UserAgent()),
		IPAddress: optional(clientIP(r)),
	}
	if err := s.store.Sessions.Create(ctx, sess); err != nil {
		s.failLogin(w, r, "session create failed", err)
		return
	}
	if err := s.sessions.Issue(w, sess.ID); err != nil {
		s.failLogin(w, r, "session cookie issue failed", err)
		return
	}

	s.log.Info("user logged in", logger.String("user_id", user.ID))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// CurrentUser resolves the request's session to a user without redirecting.
// Absence of a session is a normal state, not an error.
func (s *Service) CurrentUser(r *http.Request) (*store.User, bool) {
	token, ok := s.sessions.Token(r)
	if !ok {
		return nil, false
	}
	sess, err := s.store.Sessions.GetByID(r.Context(), token)
	if err != nil {
		return nil, false
	}
	user, err := s.store.Users.GetByID(r.Context(), sess.UserID)
	if err != nil {
		return nil, false
	}
	return user, true
}

// RequireSession gates handlers behind a live session. Browser requests are
// redirected to the landing page; API requests get a bare 401.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.sessions.Token(r)
		if !ok {
			s.deny(w, r)
			return
		}

		sess, err := s.store.Sessions.GetByID(r.Context(), token)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.log.Error("session lookup failed", logger.Error(err))
			}
			s.sessions.Clear(w)
			s.deny(w, r)
			return
		}

		user, err := s.store.Users.GetByID(r.Context(), sess.UserID)
		if err != nil {
			s.sessions.Clear(w)
			s.deny(w, r)
			return
		}

		if err := s.store.Sessions.TouchLastSeen(r.Context(), sess.ID); err != nil {
			s.log.Warn("session touch failed", logger.Error(err))
		}

		ctx := WithUser(r.Context(), user)
		ctx = WithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logout tears down the session. Calling it without an active session is a
// no-op, never an error.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.sessions.Token(r); ok {
		if err := s.store.Sessions.Delete(r.Context(), token); err != nil {
			s.log.Warn("session delete failed", logger.Error(err))
		}
	}
	s.sessions.Clear(w)
}

func (s *Service) deny(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Service) failLogin(w http.ResponseWriter, r *http.Request, reason string, err error) {
	s.log.Warn("oauth callback rejected", logger.String("reason", reason), logger.Error(err))
	http.Redirect(w, r, "/?error=login_failed", http.StatusFound)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
