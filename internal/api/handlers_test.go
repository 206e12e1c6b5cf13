package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/pipeline"
)

func testRegistry() *pipeline.Registry {
	r := pipeline.NewRegistry()
	r.Update("cam-1", func(st *models.StreamStatus) {
		st.State = models.StreamRunning
		st.FramesRead = 120
	})
	r.Update("cam-2", func(st *models.StreamStatus) {
		st.State = models.StreamFailed
		st.LastError = "inference failed (fatal): corrupt weights"
	})
	return r
}

func TestListStreams(t *testing.T) {
	h := NewHandlers(testRegistry(), nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/streams")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var got []models.StreamStatus
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].StreamID != "cam-1" || got[1].StreamID != "cam-2" {
		t.Fatalf("bad stream list: %+v", got)
	}
}

func TestGetStream(t *testing.T) {
	h := NewHandlers(testRegistry(), nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/streams/cam-2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got models.StreamStatus
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.State != models.StreamFailed || got.LastError == "" {
		t.Fatalf("degraded stream not observable: %+v", got)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	h := NewHandlers(testRegistry(), nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/streams/cam-404")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAlertsWithoutDatabase(t *testing.T) {
	h := NewHandlers(testRegistry(), nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alerts")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 when alert log disabled, got %d", resp.StatusCode)
	}
}
