package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kdimtricp/breedid/internal/camera"
	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/identification"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/picker"
)

type errorResponse struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	Recoverable bool              `json:"recoverable,omitempty"`
	Session     *capture.Snapshot `json:"session,omitempty"`
}

// classify maps domain errors onto HTTP responses.
func classify(err error) (int, errorResponse) {
	resp := errorResponse{Message: err.Error()}
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		resp.Error, resp.Recoverable = "camera_permission_denied", true
		return http.StatusConflict, resp
	case errors.Is(err, camera.ErrDeviceUnavailable):
		resp.Error, resp.Recoverable = "camera_unavailable", true
		return http.StatusConflict, resp
	case errors.Is(err, camera.ErrDeviceBusy):
		resp.Error, resp.Recoverable = "camera_busy", true
		return http.StatusConflict, resp
	case errors.Is(err, identification.ErrOffline):
		resp.Error = "offline"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, identification.ErrStaleResult):
		resp.Error = "stale_result"
		return http.StatusConflict, resp
	case errors.Is(err, identification.ErrInferenceFailed):
		resp.Error, resp.Recoverable = "inference_failed", true
		return http.StatusBadGateway, resp
	case errors.Is(err, capture.ErrSubmissionInProgress):
		resp.Error = "submission_in_progress"
		return http.StatusConflict, resp
	case errors.Is(err, capture.ErrNotCaptured):
		resp.Error = "not_captured"
		return http.StatusConflict, resp
	case errors.Is(err, capture.ErrSessionClosed):
		resp.Error = "session_closed"
		return http.StatusGone, resp
	case errors.Is(err, capture.ErrInvalidTransition), errors.Is(err, capture.ErrSuperseded):
		resp.Error = "invalid_transition"
		return http.StatusConflict, resp
	case errors.Is(err, picker.ErrTooLarge):
		resp.Error = "too_large"
		return http.StatusRequestEntityTooLarge, resp
	case errors.Is(err, picker.ErrUnsupportedType), errors.Is(err, imaging.ErrUnsupportedImage):
		resp.Error = "unsupported_image"
		return http.StatusUnsupportedMediaType, resp
	default:
		resp.Error = "internal"
		resp.Message = "internal error"
		return http.StatusInternalServerError, resp
	}
}

func (app *App) writeError(w http.ResponseWriter, err error, session *capture.Session) {
	status, resp := classify(err)
	if session != nil {
		snap := session.Snapshot()
		resp.Session = &snap
	}
	if status == http.StatusInternalServerError {
		app.logger().Error("request failed", logging.Error(err))
	} else {
		app.logger().Debug("request rejected", slog.Int("status", status), logging.Error(err))
	}
	writeJSON(w, status, resp)
}
