package api

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/catalog"
	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/identification"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	// safeURL marks data: URLs built from our own encoded stills as trusted.
	"safeURL": func(s string) template.URL { return template.URL(s) },
}).ParseFS(templateFS, "templates/*.html"))

var (
	captureInstructions = []string{
		"Position the animal clearly in frame",
		"Ensure good lighting on the face",
		"Capture side view or front face",
		"Avoid blurry or distant shots",
	}
	photoTips = []string{
		"Take clear photos of the animal's face or side",
		"Ensure good lighting (avoid shadows)",
		"Get close enough to see facial features",
		"Keep the animal calm and still",
	}
)

type App struct {
	Sessions      *capture.Registry
	Pipeline      *identification.Pipeline
	Mailbox       *identification.Mailbox
	Catalog       *catalog.Catalog
	Monitor       *connectivity.Monitor
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	MaxUploadSize int64
}

func (app *App) logger() *slog.Logger {
	return logging.NewComponentLogger(app.Logger, "api")
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title        string
		Connectivity connectivity.State
		Instructions []string
		Tips         []string
	}{
		Title:        "Livestock AI",
		Connectivity: app.Monitor.State(),
		Instructions: captureInstructions,
		Tips:         photoTips,
	}

	app.render(w, "home.html", data)
}

func (app *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		app.logger().Error("template render failed", slog.String("template", name), logging.Error(err))
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type breedView struct {
	catalog.Breed
	Slug      string   `json:"slug"`
	Highlight []string `json:"highlight"`
	More      string   `json:"more,omitempty"`
}

func newBreedView(b catalog.Breed) breedView {
	shown, more := b.Summary()
	return breedView{
		Breed:     b,
		Slug:      b.Slug(),
		Highlight: shown,
		More:      catalog.MoreLabel(more),
	}
}

// ListBreedsHandler filters the catalog by ?q= and ?type=.
func (app *App) ListBreedsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := catalog.ParseTypeFilter(r.URL.Query().Get("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_filter", Message: err.Error()})
		return
	}

	breeds := app.Catalog.Filter(r.URL.Query().Get("q"), filter)
	views := make([]breedView, 0, len(breeds))
	for _, b := range breeds {
		views = append(views, newBreedView(b))
	}

	writeJSON(w, http.StatusOK, struct {
		Count  int         `json:"count"`
		Phrase string      `json:"phrase"`
		Breeds []breedView `json:"breeds"`
	}{
		Count:  len(views),
		Phrase: catalog.CountPhrase(len(views)),
		Breeds: views,
	})
}

func (app *App) GetBreedHandler(w http.ResponseWriter, r *http.Request) {
	breed, ok := app.Catalog.Lookup(chi.URLParam(r, "slug"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "breed not found"})
		return
	}
	writeJSON(w, http.StatusOK, newBreedView(breed))
}
