package contour

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	Mp "github.com/maroda/contour/plugin"
	Ms "github.com/maroda/contour/server"
	Mt "github.com/maroda/contour/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes bounds chart definitions posted to the API
const maxBodyBytes = 1 << 20

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket frame stream
// - Version for programmatic use
// - Chart definitions, SVG renders and recorded frames
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)

	api.HandleFunc("/version", v.VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/charts", v.ChartListHandler).Methods(http.MethodGet)
	api.HandleFunc("/charts", v.ChartUpsertHandler).Methods(http.MethodPost)
	api.HandleFunc("/charts/{id}", v.ChartFrameHandler).Methods(http.MethodGet)
	api.HandleFunc("/charts/{id}", v.ChartUpsertHandler).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/charts/{id}", v.ChartDeleteHandler).Methods(http.MethodDelete)
	api.HandleFunc("/charts/{id}/replay", v.ChartReplayHandler).Methods(http.MethodPost)
	api.HandleFunc("/charts/{id}/svg", v.ChartSVGHandler).Methods(http.MethodGet)
	api.HandleFunc("/charts/{id}/frames", v.ChartFramesHandler).Methods(http.MethodGet)

	return r
}

// Handler is the traced mux
func (v *View) Handler() http.Handler {
	return otelhttp.NewHandler(v.SetupMux(), "contour")
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// ChartListHandler returns every chart definition in order
func (v *View) ChartListHandler(w http.ResponseWriter, r *http.Request) {
	cf := v.Charts.Configs()
	if cf == nil {
		cf = []Ms.ChartConfig{}
	}
	writeJSON(w, http.StatusOK, cf)
}

// ChartUpsertHandler creates or replaces one chart.
// On /charts/{id} the path ID wins over the body.
func (v *View) ChartUpsertHandler(w http.ResponseWriter, r *http.Request) {
	var cfg Ms.ChartConfig
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if id, ok := mux.Vars(r)["id"]; ok {
		cfg.ID = id
	}

	if err := v.Charts.Update(r.Context(), cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	f, err := v.Charts.Frame(cfg.ID, v.Clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ChartFrameHandler returns the chart as it looks right now
func (v *View) ChartFrameHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, err := v.Charts.Frame(id, v.Clock.Now())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (v *View) ChartDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := v.Charts.Remove(mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (v *View) ChartReplayHandler(w http.ResponseWriter, r *http.Request) {
	if err := v.Charts.Replay(mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ChartSVGHandler renders the current frame as a standalone SVG document
func (v *View) ChartSVGHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, err := v.Charts.Frame(id, v.Clock.Now())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := Mp.RenderFrame(w, &f); err != nil {
		slog.Error("Could not render SVG", slog.String("chart", id), slog.Any("Error", err))
	}
}

// ChartFramesHandler replays recorded frames between start and end (RFC3339, inclusive).
// A missing start means the beginning of time, a missing end means now.
func (v *View) ChartFramesHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	store, ok := v.Recorder.(*Mp.BadgerOutput)
	if !ok {
		writeError(w, http.StatusNotImplemented, Mp.ErrQueryUnsupported)
		return
	}

	start, end := time.Unix(0, 0), v.Clock.Now()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &start}, {"end", &end}} {
		if s := q.Get(p.name); s != "" {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			*p.dst = t
		}
	}

	if err := store.Flush(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	frames, err := store.QueryChart(id, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if frames == nil {
		frames = []*Mt.Frame{}
	}
	writeJSON(w, http.StatusOK, frames)
}

func statusFor(err error) int {
	if errors.Is(err, Ms.ErrUnknownChart) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Could not encode response", slog.Any("Error", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type RespWriter struct {
	http.ResponseWriter
	Status int
}

func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}
