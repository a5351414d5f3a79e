package errors

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/linkstash/internal/logger"
)

// Internal logs the underlying error with its request id and returns a
// generic message to the client.
func Internal(log logger.Logger, w http.ResponseWriter, r *http.Request, err error, message string) {
	log.Error(message,
		logger.String("request_id", middleware.GetReqID(r.Context())),
		logger.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// BadRequest logs the rejected request and relays a short client message.
func BadRequest(log logger.Logger, w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	log.Warn("bad request",
		logger.String("request_id", middleware.GetReqID(r.Context())),
		logger.Error(err))
	http.Error(w, clientMessage, http.StatusBadRequest)
}
