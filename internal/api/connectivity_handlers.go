package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kdimtricp/breedid/internal/connectivity"
	"github.com/kdimtricp/breedid/internal/logging"
)

type connectivityView struct {
	connectivity.State
	Banner string `json:"banner"`
}

func newConnectivityView(st connectivity.State) connectivityView {
	return connectivityView{State: st, Banner: st.Banner()}
}

func (app *App) ConnectivityHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newConnectivityView(app.Monitor.State()))
}

// ConnectivityStreamHandler pushes the current state and every change as
// server-sent events until the client goes away.
func (app *App) ConnectivityStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := app.Monitor.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientGone := r.Context().Done()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(newConnectivityView(st))
			if err != nil {
				app.logger().Warn("failed to marshal connectivity update", logging.Error(err))
				continue
			}

			fmt.Fprintf(w, "event: connectivity\ndata: %s\n\n", data)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}
