package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"calgrid/internal/engine"
	"calgrid/internal/model"
	"calgrid/internal/source"
)

func strp(s string) *string { return &s }

type countingProvider struct {
	calls atomic.Int32
	batch source.Batch
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Fetch(context.Context) (source.Batch, error) {
	p.calls.Add(1)
	if p.err != nil {
		return source.Batch{}, p.err
	}
	return p.batch, nil
}

func sampleBatch() source.Batch {
	return source.Batch{
		Events: []model.RawEvent{
			{ID: "a", StartTime: "2025-11-20T10:00:00", EndTime: strp("2025-11-20T11:30:00"), LayerID: "usos-class", Title: "Analiza"},
			{ID: "b", StartTime: "2025-11-20T11:00:00", EndTime: strp("2025-11-20T12:00:00"), LayerID: "private", Title: "Lunch"},
			{ID: "bad", StartTime: "", LayerID: "usos-class"},
		},
		Layers: model.LayerMap{
			"usos-class": {ID: "usos-class", Color: "#005846"},
			"private":    {ID: "private", Color: "#3498DB"},
		},
	}
}

func newTestServer(t *testing.T, p source.Provider) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(p, Options{
		Engine:  engine.Options{Location: time.UTC},
		View:    model.ViewState{Date: model.NewDate(2025, 11, 20), Mode: model.ViewWeek},
		Metrics: NewMetrics(),
	})
	s.now = func() time.Time { return time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC) }
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, &countingProvider{})
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestNavigationEndpoints(t *testing.T) {
	_, h := newTestServer(t, &countingProvider{})

	steps := []struct {
		method, path, body string
		wantCode           int
		wantDate           string
		wantMode           model.ViewMode
	}{
		{http.MethodGet, "/api/view", "", 200, "2025-11-20", model.ViewWeek},
		{http.MethodPost, "/api/view/navigate", `{"direction":"next"}`, 200, "2025-11-27", model.ViewWeek},
		{http.MethodPost, "/api/view/navigate", `{"direction":"sideways"}`, 400, "", ""},
		{http.MethodPost, "/api/view/mode", `{"view":"month"}`, 200, "2025-11-27", model.ViewMonth},
		{http.MethodPost, "/api/view/navigate", `{"direction":"prev"}`, 200, "2025-10-27", model.ViewMonth},
		{http.MethodPost, "/api/view/goto", `{"date":"2026-01-31"}`, 200, "2026-01-31", model.ViewMonth},
		{http.MethodPost, "/api/view/goto", `{"date":"2026-02-02","view":"day"}`, 200, "2026-02-02", model.ViewDay},
		{http.MethodPost, "/api/view/goto", `{"date":"02/02/2026"}`, 400, "", ""},
		{http.MethodPost, "/api/view/mode", `{"view":"year"}`, 400, "", ""},
		{http.MethodPost, "/api/view/mode", `not json`, 400, "", ""},
		{http.MethodPost, "/api/view/today", "", 200, "2025-11-20", model.ViewDay},
	}
	for _, st := range steps {
		rec := do(t, h, st.method, st.path, st.body)
		if rec.Code != st.wantCode {
			t.Fatalf("%s %s %s: code = %d, want %d (%s)", st.method, st.path, st.body, rec.Code, st.wantCode, rec.Body.String())
		}
		if st.wantCode != http.StatusOK {
			continue
		}
		got := decode[model.ViewState](t, rec)
		if got.Date.String() != st.wantDate || got.Mode != st.wantMode {
			t.Errorf("%s %s: state = %s/%s, want %s/%s", st.path, st.body, got.Date, got.Mode, st.wantDate, st.wantMode)
		}
	}
}

func TestLayout_WeekAndQueryOverrides(t *testing.T) {
	p := &countingProvider{batch: sampleBatch()}
	_, h := newTestServer(t, p)

	rec := do(t, h, http.MethodGet, "/api/layout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("layout code = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[engine.Result](t, rec)
	if len(res.Days) != 7 || res.Days[0].Date.String() != "2025-11-17" {
		t.Fatalf("week days = %d starting %v", len(res.Days), res.Days[0].Date)
	}
	thu := res.Days[3]
	if len(thu.Events) != 2 {
		t.Fatalf("thursday events = %d, want 2", len(thu.Events))
	}
	for _, pl := range thu.Events {
		if pl.Width != 50 {
			t.Errorf("%s width = %v, want 50", pl.EventID, pl.Width)
		}
	}
	if len(res.Invalid) != 1 || res.Invalid[0].ID != "bad" {
		t.Errorf("invalid = %+v", res.Invalid)
	}

	rec = do(t, h, http.MethodGet, "/api/layout?date=2025-11-20&view=day&layers=private", "")
	res = decode[engine.Result](t, rec)
	if len(res.Days) != 1 || len(res.Days[0].Events) != 1 || res.Days[0].Events[0].Width != 100 {
		t.Errorf("filtered day layout = %+v", res.Days)
	}
	if res.Days[0].Events[0].Color != "#3498DB" {
		t.Errorf("color = %q", res.Days[0].Events[0].Color)
	}

	rec = do(t, h, http.MethodGet, "/api/layout?view=month", "")
	res = decode[engine.Result](t, rec)
	if res.Month == nil || len(res.Days) != 0 {
		t.Fatalf("month layout = %+v", res)
	}
	if cell := res.Month.Cells[19]; len(cell.Dots) != 2 {
		t.Errorf("Nov 20 dots = %d, want 2", len(cell.Dots))
	}

	if rec := do(t, h, http.MethodGet, "/api/layout?date=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/layout?view=decade", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad view code = %d", rec.Code)
	}
}

func TestAgendaAndLayers(t *testing.T) {
	_, h := newTestServer(t, &countingProvider{batch: sampleBatch()})

	rec := do(t, h, http.MethodGet, "/api/agenda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("agenda code = %d", rec.Code)
	}
	ag := decode[agendaResponse](t, rec)
	if len(ag.Days) != 1 || len(ag.Days[0].Events) != 2 {
		t.Errorf("agenda = %+v", ag.Days)
	}

	layers := decode[model.LayerMap](t, do(t, h, http.MethodGet, "/api/layers", ""))
	if len(layers) != 2 {
		t.Errorf("layers = %v", layers)
	}
}

func TestBatchCacheAndRefresh(t *testing.T) {
	p := &countingProvider{batch: sampleBatch()}
	s, h := newTestServer(t, p)

	do(t, h, http.MethodGet, "/api/layout", "")
	do(t, h, http.MethodGet, "/api/layout", "")
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1 within TTL", n)
	}

	base := s.now()
	s.now = func() time.Time { return base.Add(DefaultBatchTTL + time.Second) }
	do(t, h, http.MethodGet, "/api/layout", "")
	if n := p.calls.Load(); n != 2 {
		t.Fatalf("fetches = %d, want 2 after TTL", n)
	}

	// A failing refresh keeps the previous batch.
	p.err = errors.New("backend down")
	if rec := do(t, h, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("refresh code = %d, want 502", rec.Code)
	}
	res := decode[engine.Result](t, do(t, h, http.MethodGet, "/api/layout", ""))
	if len(res.Days[3].Events) != 2 {
		t.Errorf("cached batch lost after failed refresh")
	}

	p.err = nil
	if rec := do(t, h, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusNoContent {
		t.Errorf("refresh code = %d, want 204", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, &countingProvider{batch: sampleBatch()})
	do(t, h, http.MethodGet, "/api/layout", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics code = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`calgrid_http_requests_total{route="layout",status="200"} 1`,
		"calgrid_source_cache_misses_total 1",
		"calgrid_layout_invalid_events 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestViewHolder_Apply(t *testing.T) {
	h := NewViewHolder(model.ViewState{Date: model.NewDate(2025, 1, 1), Mode: model.ViewDay})
	got := h.Apply(func(s model.ViewState) model.ViewState {
		s.Mode = model.ViewMonth
		return s
	})
	if got.Mode != model.ViewMonth || h.Get().Mode != model.ViewMonth {
		t.Errorf("state = %+v", h.Get())
	}
}
