package localserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Actions are the process controls offered on the socket. A nil action
// answers 501.
type Actions struct {
	Reload   func() error
	Shutdown func()
}

type result struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHandler wraps api with the local process controls.
func NewHandler(api http.Handler, actions Actions, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /local/v1/reload", func(w http.ResponseWriter, r *http.Request) {
		if actions.Reload == nil {
			writeResult(w, http.StatusNotImplemented, result{Status: "unsupported"})
			return
		}
		if err := actions.Reload(); err != nil {
			logger.Warn("local reload failed", "error", err)
			writeResult(w, http.StatusUnprocessableEntity, result{Status: "failed", Error: err.Error()})
			return
		}
		logger.Info("configuration reloaded via local socket")
		writeResult(w, http.StatusOK, result{Status: "reloaded"})
	})
	mux.HandleFunc("POST /local/v1/shutdown", func(w http.ResponseWriter, r *http.Request) {
		if actions.Shutdown == nil {
			writeResult(w, http.StatusNotImplemented, result{Status: "unsupported"})
			return
		}
		logger.Warn("shutdown requested via local socket")
		writeResult(w, http.StatusAccepted, result{Status: "shutting down"})
		// The response is flushed before the server starts draining.
		go actions.Shutdown()
	})
	if api != nil {
		mux.Handle("/", api)
	}
	return mux
}

func writeResult(w http.ResponseWriter, status int, res result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}
