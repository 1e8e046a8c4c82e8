package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/loqalabs/loqa-present/internal/eventstore"
	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/render"
	"github.com/loqalabs/loqa-present/internal/script"
	"github.com/loqalabs/loqa-present/internal/session"
	"github.com/loqalabs/loqa-present/internal/slide"
)

// API serves the session manager over HTTP.
type API struct {
	sessions  *session.Manager
	generator *script.Generator
	extractor *script.Extractor
	history   *eventstore.Store
	renderer  render.Text
	log       *slog.Logger
}

type createRequest struct {
	ID      string        `json:"id,omitempty"`
	Content string        `json:"content,omitempty"`
	Slides  []slide.Slide `json:"slides,omitempty"`
}

type eventView struct {
	Type       string          `json:"type"`
	SlideIndex int             `json:"slide_index"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type seekRequest struct {
	Fraction float64 `json:"fraction"`
}

type sessionResponse struct {
	ID       string            `json:"id"`
	Snapshot playback.Snapshot `json:"snapshot"`
	Caption  string            `json:"caption"`
}

func (r *Runtime) routes(metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", r.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", r.handleReady).Methods(http.MethodGet)
	if metrics != nil && r.cfg.Telemetry.PrometheusBind == "" {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	api := &API{
		sessions:  r.sessions,
		generator: r.generator,
		extractor: r.extractor,
		history:   r.store,
		renderer:  render.Text{Width: 72},
		log:       r.logger.With(slog.String("component", "http-api")),
	}
	api.Register(router)
	return router
}

// Register adds the session routes to router.
func (a *API) Register(router *mux.Router) {
	s := router.PathPrefix("/sessions").Subrouter()
	s.HandleFunc("", a.listSessions).Methods(http.MethodGet)
	s.HandleFunc("", a.createSession).Methods(http.MethodPost)
	s.HandleFunc("/{id}", a.getSession).Methods(http.MethodGet)
	s.HandleFunc("/{id}", a.deleteSession).Methods(http.MethodDelete)
	s.HandleFunc("/{id}/play-pause", a.control(session.ActionPlayPause)).Methods(http.MethodPost)
	s.HandleFunc("/{id}/replay", a.control(session.ActionReplay)).Methods(http.MethodPost)
	s.HandleFunc("/{id}/seek", a.seek).Methods(http.MethodPost)
	s.HandleFunc("/{id}/frame", a.frame).Methods(http.MethodGet)
	s.HandleFunc("/{id}/events", a.events).Methods(http.MethodGet)
	s.HandleFunc("/{id}/ws", a.stream).Methods(http.MethodGet)
}

func (a *API) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.List())
}

// createSession mounts the given slides, or generates them from content.
func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	slides := req.Slides
	if len(slides) == 0 {
		text, err := a.extractor.Text(req.Content)
		if err != nil {
			http.Error(w, "content or slides is required", http.StatusBadRequest)
			return
		}
		slides, err = a.generator.Generate(r.Context(), text)
		if err != nil {
			a.log.Warn("script generation failed", slog.String("error", err.Error()))
			status := http.StatusBadGateway
			if errors.Is(err, script.ErrEmptyScript) {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, "could not generate a presentation from this content", status)
			return
		}
	}
	for i, s := range slides {
		if err := s.Validate(); err != nil {
			http.Error(w, "slide "+strconv.Itoa(i+1)+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sess, err := a.sessions.Mount(r.Context(), req.ID, slides)
	if err != nil {
		if errors.Is(err, playback.ErrNoSlides) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, describe(sess))
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Dismiss(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) control(action session.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.apply(w, r, action, 0)
	}
}

func (a *API) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	a.apply(w, r, session.ActionSeek, req.Fraction)
}

func (a *API) apply(w http.ResponseWriter, r *http.Request, action session.Action, fraction float64) {
	id := mux.Vars(r)["id"]
	if err := a.sessions.Control(id, action, fraction); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, ok := a.sessions.Get(id)
	if !ok {
		http.Error(w, session.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

func (a *API) frame(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Controller().Frame(a.renderer.Render))
}

func (a *API) events(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := a.history.ListSessionEvents(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{Type: e.Type, SlideIndex: e.SlideIndex, Payload: json.RawMessage(e.Payload), CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := a.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, session.ErrNotFound.Error(), http.StatusNotFound)
	}
	return sess, ok
}

func describe(sess *session.Session) sessionResponse {
	snap := sess.Snapshot()
	return sessionResponse{ID: sess.ID(), Snapshot: snap, Caption: render.Caption(snap.Current, snap.Count)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
