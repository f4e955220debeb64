package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)
	r.Handle("/metrics", app.Metrics.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSessionHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSessionHandler)
			r.Delete("/", app.CancelSessionHandler)
			r.Post("/stream", app.StartStreamHandler)
			r.Delete("/stream", app.StopStreamHandler)
			r.Get("/preview", app.PreviewHandler)
			r.Post("/capture", app.CaptureHandler)
			r.Post("/import", app.ImportHandler)
			r.Post("/retake", app.RetakeHandler)
			r.Post("/reselect", app.ReselectHandler)
			r.Post("/switch-import", app.SwitchToImportHandler)
			r.Post("/submit", app.SubmitHandler)
			r.Get("/still", app.StillHandler)
		})
	})

	r.Get("/results/{id}", app.ResultHandler)

	r.Get("/breeds", app.ListBreedsHandler)
	r.Get("/breeds/{slug}", app.GetBreedHandler)

	r.Get("/connectivity", app.ConnectivityHandler)
	r.Get("/connectivity/stream", app.ConnectivityStreamHandler)

	return r
}
