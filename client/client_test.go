package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
	"github.com/kenrgriggs/whatskennethdoing/grid"
	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
)

func TestClient_SendsViewerHeader(t *testing.T) {
	var gotViewer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotViewer = r.Header.Get("X-Viewer")
		json.NewEncoder(w).Encode(map[string]any{"current": nil})
	}))
	defer srv.Close()

	c := New(srv.URL, "kenneth")
	current, err := c.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != nil {
		t.Errorf("Current() = %+v, want nil", current)
	}
	if gotViewer != "kenneth" {
		t.Errorf("X-Viewer = %q, want kenneth", gotViewer)
	}
}

func TestClient_FetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("limit = %q, want 50", r.URL.Query().Get("limit"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"events": []domain.Event{{ID: "ev-1", Title: "task"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "kenneth")
	events, err := c.FetchEvents(context.Background(), 50)
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev-1" {
		t.Errorf("FetchEvents() = %+v", events)
	}
}

func TestClient_UpdateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/api/v1/events/ev-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var patch grid.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("failed to decode patch: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"event": domain.Event{ID: "ev-1", Title: *patch.Title},
		})
	}))
	defer srv.Close()

	title := "renamed"
	c := New(srv.URL, "kenneth")
	event, err := c.UpdateEvent(context.Background(), "ev-1", grid.Patch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if event.Title != "renamed" {
		t.Errorf("event title = %q", event.Title)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "validation_error",
			"message": "end time is before start time",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "kenneth")
	_, err := c.Start(context.Background(), activity.StartRequest{Title: "x", Category: "y"})
	if err == nil {
		t.Fatal("Start() error = nil, want APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "validation_error" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if err.Error() != "end time is before start time" {
		t.Errorf("Error() = %q, server message should be preserved", err.Error())
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "kenneth")
	err := c.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() error = nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("error = %v", err)
	}
}
