package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/poiesic/articlevec/core"
)

// Envelope codes
const (
	CodeSuccess = 0

	// client errors (1000-1999)
	CodeInvalidParams           = 1000
	CodeArticleNotFound         = 1002
	CodeProfileNotFound         = 1003
	CodeNoResolvableInteraction = 1004

	// server errors (2000-2999)
	CodeServerError        = 2000
	CodeStorageUnavailable = 2001
	CodeServiceNotReady    = 2002
)

// CodeMessages holds the default message of each envelope code.
var CodeMessages = map[int]string{
	CodeSuccess:                 "success",
	CodeInvalidParams:           "invalid parameters",
	CodeArticleNotFound:         "article not found",
	CodeProfileNotFound:         "user profile not found",
	CodeNoResolvableInteraction: "no interaction could be resolved to a vector",
	CodeServerError:             "internal server error",
	CodeStorageUnavailable:      "storage unavailable",
	CodeServiceNotReady:         "service not ready",
}

// Envelope wraps every response body.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Warn("error writing response", "err", err)
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Code: CodeSuccess, Message: CodeMessages[CodeSuccess], Data: data})
}

// classify maps an error onto an HTTP status and envelope code.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, CodeInvalidParams
	case errors.Is(err, core.ErrArticleNotFound):
		return http.StatusNotFound, CodeArticleNotFound
	case errors.Is(err, core.ErrProfileNotFound):
		return http.StatusNotFound, CodeProfileNotFound
	case errors.Is(err, core.ErrNoResolvableInteractions):
		return http.StatusUnprocessableEntity, CodeNoResolvableInteraction
	case errors.Is(err, core.ErrServiceNotReady):
		return http.StatusServiceUnavailable, CodeServiceNotReady
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, CodeStorageUnavailable
	}
	return http.StatusInternalServerError, CodeServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if code == CodeServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		message = CodeMessages[code]
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, Envelope{Code: code, Message: message, Data: struct{}{}})
}
