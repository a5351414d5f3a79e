package ui

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/linkstash/internal/http/csrf"
	httperrors "github.com/example/linkstash/internal/http/errors"
)

// withFlash adds flash messages, form prefill values, and the CSRF token to
// template data.
func (h *Handler) withFlash(r *http.Request, data map[string]any) map[string]any {
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		data["FlashMessage"] = status
	}
	if errMsg := q.Get("error"); errMsg != "" {
		data["FlashError"] = errMsg
	}
	// A failed add round-trips the submitted values so the form stays filled.
	if title := q.Get("title"); title != "" {
		data["FormTitle"] = title
	}
	if formURL := q.Get("url"); formURL != "" {
		data["FormURL"] = formURL
	}
	if token := csrf.TokenFromContext(r.Context()); token != "" {
		data["CSRFToken"] = token
	}
	return data
}

// redirect redirects to a path with query parameters.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string, params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	location := path
	if encoded := q.Encode(); encoded != "" {
		location += "?" + encoded
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// render executes a template and writes the response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	tmpl, ok := h.templates[name]
	if !ok {
		httperrors.Internal(h.log, w, r, fmt.Errorf("template %q not found", name), "template lookup failed")
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		httperrors.Internal(h.log, w, r, err, fmt.Sprintf("template render error for %q", name))
	}
}
