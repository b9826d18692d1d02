package web

// errors.go turns errors into JSON responses. The technical error is logged
// with the request id; the client gets the mapped user message and its code.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/JonMunkholm/labdigest/internal/stats"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks request validation failures raised by handlers.
var errBadRequest = errors.New("bad request")

// statusFor picks the HTTP status for an error returned by the app.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrArtifactNotFound), errors.Is(err, core.ErrSheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunInProgress),
		errors.Is(err, core.ErrDuplicateProcessing),
		errors.Is(err, core.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrInvalidFix),
		errors.Is(err, core.ErrFormat),
		errors.Is(err, stats.ErrUnknownMonth):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user message with the status
// statusFor picks. Request errors with no mapped message are echoed as REQ001.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if msg.Code == "ERR000" && errors.Is(err, errBadRequest) {
		msg = core.UserMessage{Message: err.Error(), Code: "REQ001"}
	}

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
