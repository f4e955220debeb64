package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/picker"
)

func (app *App) session(w http.ResponseWriter, r *http.Request) (*capture.Session, bool) {
	session, exists := app.Sessions.Get(chi.URLParam(r, "id"))
	if !exists {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "session not found"})
		return nil, false
	}
	return session, true
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// CreateSessionHandler opens a capture session. Live sessions acquire the
// camera straight away; a failure there is reported in the session state so
// the client can retry or switch to import.
func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	mode := capture.Mode(strings.ToLower(strings.TrimSpace(r.FormValue("mode"))))
	if mode == "" {
		mode = capture.ModeLive
	}
	if mode != capture.ModeLive && mode != capture.ModeImport {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_mode", Message: fmt.Sprintf("unknown mode %q", mode)})
		return
	}

	session := app.Sessions.Create(mode)
	switch mode {
	case capture.ModeLive:
		if err := session.StartStream(r.Context()); err != nil {
			app.logger().Info("camera unavailable for new session",
				slog.String(logging.FieldSession, session.ID),
				logging.Error(err),
			)
		}
	case capture.ModeImport:
		if err := session.AwaitSelection(); err != nil {
			app.writeError(w, err, session)
			return
		}
	}

	w.Header().Set("Location", "/sessions/"+session.ID)
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// CancelSessionHandler releases the camera and forgets the session.
func (app *App) CancelSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Sessions.Remove(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) StartStreamHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := session.StartStream(r.Context()); err != nil {
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) StopStreamHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	session.StopStream()
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := session.CaptureStill(r.Context()); err != nil {
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	frame, err := session.Preview(r.Context())
	if err != nil {
		app.writeError(w, err, session)
		return
	}
	writeStill(w, frame)
}

// ImportHandler accepts a multipart upload in field "photo". A form without
// a file is a dismissed picker and answers 204 without changing anything.
func (app *App) ImportHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if session.State() == capture.StateIdle {
		if err := session.AwaitSelection(); err != nil {
			app.writeError(w, err, session)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	file, err := picker.FromRequest(r, app.MaxUploadSize)
	if err == nil {
		err = session.ImportFile(r.Context(), file)
	}
	if err != nil {
		if errors.Is(err, picker.ErrNoSelection) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) RetakeHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := session.Retake(r.Context()); err != nil {
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) ReselectHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := session.Reselect(); err != nil {
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) SwitchToImportHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	if err := session.SwitchToImport(); err != nil {
		app.writeError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (app *App) StillHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}
	still := session.Still()
	if still == nil {
		app.writeError(w, capture.ErrNotCaptured, session)
		return
	}
	writeStill(w, still)
}

func writeStill(w http.ResponseWriter, still *imaging.Still) {
	w.Header().Set("Content-Type", still.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(still.Data)
}

// SubmitHandler runs identification and points the client at the one-shot
// result page.
func (app *App) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := app.session(w, r)
	if !ok {
		return
	}

	h, err := app.Pipeline.Submit(r.Context(), session)
	if err != nil {
		app.writeError(w, err, session)
		return
	}

	resultURL := "/results/" + h.ID
	if wantsHTML(r) {
		http.Redirect(w, r, resultURL, http.StatusSeeOther)
		return
	}

	w.Header().Set("Location", resultURL)
	writeJSON(w, http.StatusOK, struct {
		HandoffID  string `json:"handoff_id"`
		ResultURL  string `json:"result_url"`
		Breed      string `json:"breed"`
		Confidence int    `json:"confidence"`
		Tier       string `json:"tier"`
	}{
		HandoffID:  h.ID,
		ResultURL:  resultURL,
		Breed:      h.Result.Breed,
		Confidence: h.Result.Confidence,
		Tier:       string(h.Result.Tier()),
	})
}
