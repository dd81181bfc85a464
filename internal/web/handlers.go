package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"calgrid/internal/engine"
	"calgrid/internal/model"
	"calgrid/internal/nav"
	"calgrid/internal/normalize"
	"calgrid/internal/window"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Get())
}

type navigateRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir, err := nav.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := s.view.Apply(func(cur model.ViewState) model.ViewState { return nav.Navigate(cur, dir) })
	writeJSON(w, http.StatusOK, st)
}

type gotoRequest struct {
	Date string `json:"date"`
	View string `json:"view,omitempty"`
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var mode model.ViewMode
	if req.View != "" {
		if mode, err = model.ParseViewMode(req.View); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	st := s.view.Apply(func(cur model.ViewState) model.ViewState {
		if mode == "" {
			return nav.GoToDate(date, cur.Mode)
		}
		return nav.GoToDate(date, mode)
	})
	writeJSON(w, http.StatusOK, st)
}

type modeRequest struct {
	View string `json:"view"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := model.ParseViewMode(req.View)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := s.view.Apply(func(cur model.ViewState) model.ViewState { return nav.SetViewMode(cur, mode) })
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	st := s.view.Apply(func(cur model.ViewState) model.ViewState {
		return nav.Today(s.now(), s.opts.Location, cur.Mode)
	})
	writeJSON(w, http.StatusOK, st)
}

// handleLayout computes the layout of the current view.
//
// GET /api/layout?date=2025-11-20&view=week&layers=usos-class,private
//   - date, view: override the shared state for this request only
//   - layers:     comma-separated active layers (default: all)
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requestState(w, r)
	if !ok {
		return
	}
	b := s.currentBatch(r.Context())
	events := filterLayers(b.Events, r.URL.Query().Get("layers"))

	res := engine.Compute(engine.Input{Events: events, Layers: b.Layers, State: st}, s.opts)
	s.metrics.invalidEvents(len(res.Invalid))
	writeJSON(w, http.StatusOK, res)
}

type agendaResponse struct {
	View  model.ViewState    `json:"view"`
	Range window.Range       `json:"range"`
	Days  []engine.AgendaDay `json:"days"`
}

// handleAgenda lists the events of the current window grouped by day.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requestState(w, r)
	if !ok {
		return
	}
	b := s.currentBatch(r.Context())
	raws := filterLayers(b.Events, r.URL.Query().Get("layers"))

	events := normalize.NormalizeAll(raws, normalize.Options{
		Location:        s.opts.Location,
		DefaultDuration: s.opts.DefaultDuration,
	})
	rng := window.For(st.Date, st.Mode, s.opts.Location)
	writeJSON(w, http.StatusOK, agendaResponse{
		View:  st,
		Range: rng,
		Days:  engine.Agenda(window.Filter(events, rng)),
	})
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentBatch(r.Context()).Layers)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestState returns the shared state with any date/view query overrides.
func (s *Server) requestState(w http.ResponseWriter, r *http.Request) (model.ViewState, bool) {
	st := s.view.Get()
	q := r.URL.Query()
	if v := q.Get("date"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return st, false
		}
		st.Date = d
	}
	if v := q.Get("view"); v != "" {
		m, err := model.ParseViewMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return st, false
		}
		st.Mode = m
	}
	return st, true
}

func filterLayers(events []model.RawEvent, param string) []model.RawEvent {
	if param == "" {
		return events
	}
	active := make(map[string]bool)
	for _, id := range strings.Split(param, ",") {
		if id = strings.TrimSpace(id); id != "" {
			active[id] = true
		}
	}
	return engine.FilterActiveLayers(events, active)
}

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
