package acoustid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/franz/songsearch/internal/util"
)

func TestLookup(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/lookup" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = map[string]string{
			"client":      r.PostForm.Get("client"),
			"meta":        r.PostForm.Get("meta"),
			"duration":    r.PostForm.Get("duration"),
			"fingerprint": r.PostForm.Get("fingerprint"),
		}
		fmt.Fprint(w, `{
			"status": "ok",
			"results": [{
				"id": "acoustid-1",
				"score": 0.93,
				"recordings": [{
					"id": "rec-1",
					"title": "Yesterday",
					"artists": [{"id": "a1", "name": "The Beatles"}],
					"releasegroups": [{"id": "rg-1", "title": "Help!", "type": "Album"}]
				}]
			}]
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	defer client.Close()

	resp, err := client.Lookup(context.Background(), "key123", "AQADtE", 125.7)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if form["client"] != "key123" || form["fingerprint"] != "AQADtE" || form["duration"] != "125" {
		t.Errorf("unexpected form: %v", form)
	}
	if form["meta"] != "recordings releasegroups compress" {
		t.Errorf("meta = %q", form["meta"])
	}

	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	rec := resp.Results[0].Recordings[0]
	if rec.Title != "Yesterday" || rec.ArtistNames()[0] != "The Beatles" {
		t.Errorf("unexpected recording: %+v", rec)
	}
	if rec.ReleaseGroups[0].Title != "Help!" {
		t.Errorf("release group = %+v", rec.ReleaseGroups[0])
	}
}

func TestLookupErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"service error", http.StatusBadRequest, `{"status":"error","error":{"code":4,"message":"invalid API key"}}`, "invalid API key"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "502: <html>bad gateway</html>"},
		{"truncated", http.StatusOK, `{"status":"ok","results":[`, "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL)
			defer client.Close()

			_, err := client.Lookup(context.Background(), "key", "fp", 10)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLookupRequiresKey(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	defer client.Close()

	if _, err := client.Lookup(context.Background(), "", "fp", 10); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBestResult(t *testing.T) {
	results := []Result{
		{ID: "no-recordings", Score: 0.99},
		{ID: "low", Score: 0.5, Recordings: []Recording{{ID: "r1"}}},
		{ID: "high", Score: 0.9, Recordings: []Recording{{ID: "r2"}}},
		{ID: "tie", Score: 0.9, Recordings: []Recording{{ID: "r3"}}},
	}

	best := BestResult(results)
	if best == nil || best.ID != "high" {
		t.Errorf("BestResult = %+v, want high", best)
	}

	if BestResult([]Result{{ID: "x", Score: 1}}) != nil {
		t.Error("expected nil when no result has recordings")
	}
	if BestResult(nil) != nil {
		t.Error("expected nil for no results")
	}
}
