package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

func newServer(t *testing.T) (*httptest.Server, *stream.Store, *Metrics) {
	t.Helper()
	st := stream.New(stream.Params{Plates: 2, Capacity: 10})
	m := NewMetrics()
	st.Subscribe(m.Observe(st))
	srv := httptest.NewServer(NewMux(st, m, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, st, m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newServer(t)
	code, body := get(t, srv.URL+"/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Errorf("healthz = %d %q", code, body)
	}
}

func TestSnapshot(t *testing.T) {
	srv, st, _ := newServer(t)

	code, body := get(t, srv.URL+"/snapshot")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var empty SnapshotResponse
	if err := json.Unmarshal([]byte(body), &empty); err != nil {
		t.Fatal(err)
	}
	if empty.State != "IDLE" || empty.Latest != nil || empty.Count != 0 {
		t.Errorf("empty snapshot = %+v", empty)
	}

	st.Apply(session.EventStartReplay)
	st.Ingest(reading.Reading{Timestamp: 10, Temperatures: []float64{92, 79}, Compositions: []float64{0.05, 0.6}, CompletionFraction: 40})

	_, body = get(t, srv.URL+"/snapshot")
	var got SnapshotResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got.State != "REPLAY" || got.Progress != 40 || got.Count != 1 || got.Version != 2 || got.Plates != 2 {
		t.Errorf("snapshot = %+v", got)
	}
	if got.Latest == nil || got.Latest.Temperatures[1] != 79 {
		t.Errorf("latest = %+v", got.Latest)
	}
}

func TestSnapshot_LastError(t *testing.T) {
	srv, st, _ := newServer(t)
	st.Fail(errors.New("bus timeout"))
	_, body := get(t, srv.URL+"/snapshot")
	if !strings.Contains(body, `"lastError":"bus timeout"`) {
		t.Errorf("body = %s", body)
	}
}

func TestSeries(t *testing.T) {
	srv, st, _ := newServer(t)
	st.Apply(session.EventConnect)
	st.Ingest(reading.Reading{Timestamp: 0, Temperatures: []float64{90, 80}, Compositions: []float64{0.1, 0.5}})
	st.Ingest(reading.Reading{Timestamp: 30, Temperatures: []float64{91}, Compositions: []float64{0.09}})

	code, body := get(t, srv.URL+"/series")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var got SeriesResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != "temperature" || len(got.Labels) != 2 || got.Labels[1] != "00:30" {
		t.Errorf("series = %+v", got)
	}
	if len(got.Series) != 2 || len(got.Series[0].Points) != 2 || len(got.Series[1].Points) != 1 {
		t.Errorf("series shape = %+v", got.Series)
	}

	_, body = get(t, srv.URL+"/series?kind=composition")
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != "composition" || got.Series[0].Points[1].Value != 0.09 {
		t.Errorf("composition series = %+v", got)
	}

	code, body = get(t, srv.URL+"/series?kind=pressure")
	if code != http.StatusBadRequest || !strings.Contains(body, "kind must be") {
		t.Errorf("bad kind = %d %s", code, body)
	}
}

func TestMetrics(t *testing.T) {
	srv, st, _ := newServer(t)
	st.Apply(session.EventStartReplay)
	st.Ingest(reading.Reading{Timestamp: 0, CompletionFraction: 50})
	st.Ingest(reading.Reading{Timestamp: 1, CompletionFraction: 100})
	st.Fail(errors.New("boom"))
	get(t, srv.URL+"/healthz")

	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, want := range []string{
		"colmon_readings_ingested_total 2",
		"colmon_failures_total 1",
		`colmon_session_state{state="IDLE"} 1`,
		`colmon_session_state{state="REPLAY"} 0`,
		`colmon_transitions_total{to="REPLAY"} 1`,
		`colmon_transitions_total{to="PAUSED"} 1`,
		`colmon_transitions_total{to="IDLE"} 1`,
		"colmon_buffer_length 0",
		"colmon_replay_progress 0",
		`colmon_http_requests_total{method="GET",path="/healthz",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), zerolog.Nop()) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}
}

func TestServe_BadAddr(t *testing.T) {
	err := Serve(context.Background(), "256.0.0.1:bad", http.NotFoundHandler(), zerolog.Nop())
	if err == nil {
		t.Error("expected listen error")
	}
}
