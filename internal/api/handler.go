package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"ad-routing-service/internal/engine"
	"ad-routing-service/internal/observability"
	"ad-routing-service/internal/storage"
	"ad-routing-service/internal/target"
)

type Handler struct {
	Repo  *target.Repository
	Eng   *engine.Engine
	Store storage.Store
}

func NewHandler(repo *target.Repository, eng *engine.Engine, st storage.Store) *Handler {
	return &Handler{Repo: repo, Eng: eng, Store: st}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var t target.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validateTarget(&t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.Repo.Create(r.Context(), &t)
	if err != nil {
		log.Error().Err(err).Str("id", t.ID).Msg("create target")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Repo.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list targets")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Repo.Get(r.Context(), id)
	if errors.Is(err, target.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("get target")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch target.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := validatePatch(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Repo.Update(r.Context(), id, patch)
	if errors.Is(err, target.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("update target")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type routeRequest struct {
	GeoState  string `json:"geoState"`
	Timestamp string `json:"timestamp"`
	Hour      *int   `json:"hour"`
}

// hourOf resolves the query hour: an explicit hour wins, otherwise the
// timestamp's UTC hour-of-day.
func (rr routeRequest) hourOf() (int, error) {
	if rr.Hour != nil {
		if *rr.Hour < 0 || *rr.Hour > 23 {
			return 0, errors.New("invalid hour")
		}
		return *rr.Hour, nil
	}
	ts, err := time.Parse(time.RFC3339, rr.Timestamp)
	if err != nil {
		return 0, errors.New("invalid timestamp")
	}
	return ts.UTC().Hour(), nil
}

func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.GeoState == "" {
		writeError(w, http.StatusBadRequest, "invalid geoState")
		return
	}
	hour, err := req.hourOf()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	t, err := h.Eng.Select(r.Context(), engine.Query{GeoState: req.GeoState, Hour: hour})
	observability.SelectionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("geo_state", req.GeoState).Int("hour", hour).Msg("select target")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	if t == nil {
		observability.Decisions.WithLabelValues("reject").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"decision": "reject"})
		return
	}
	observability.Decisions.WithLabelValues("accept").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"url": t.URL})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
