package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/identification"
)

// ResultHandler renders a hand-off once. Without a payload the user is sent
// back home.
func (app *App) ResultHandler(w http.ResponseWriter, r *http.Request) {
	res := identification.ResolveEntry(app.Mailbox.Take(chi.URLParam(r, "id")))
	if res.View == nil {
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	app.render(w, "results.html", struct {
		Connectivity connectivity.State
		View         *identification.ResultView
	}{
		Connectivity: app.Monitor.State(),
		View:         res.View,
	})
}
