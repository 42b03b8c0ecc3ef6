package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-review/pkg/models"
)

func TestTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/analysis/a1/transcript" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"segments": []map[string]interface{}{
				{"id": "s1", "speaker": "Manager", "text": "hello", "start": 0.0, "end": 4.5},
				{"speaker": "Customer", "text": "hi", "start": 5.0, "end": 7.25},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	segments, err := client.Transcript(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	if segments[0].ID != "s1" || segments[0].Speaker != models.SpeakerOperator || segments[0].EndTime != 4.5 {
		t.Fatalf("segment[0] = %+v", segments[0])
	}
	if segments[1].Speaker != models.SpeakerClient {
		t.Fatalf("segment[1].Speaker = %s, want client", segments[1].Speaker)
	}
	if segments[1].ID == "" {
		t.Fatal("missing segment id should be generated")
	}
}

func TestChecklist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/checklists/cl1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"categories": []map[string]interface{}{
				{
					"id":   "beginning",
					"name": "Beginning",
					"criteria": []map[string]interface{}{
						{"id": "greeting", "text": "Operator greeted the client", "required": true},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	categories, err := client.Checklist(context.Background(), "cl1")
	if err != nil {
		t.Fatalf("Checklist: %v", err)
	}
	if len(categories) != 1 || len(categories[0].Criteria) != 1 {
		t.Fatalf("categories = %+v", categories)
	}
	crit := categories[0].Criteria[0]
	if crit.CategoryID != "beginning" || !crit.Required {
		t.Fatalf("criterion = %+v, category back-reference missing", crit)
	}
}

func TestConfirmScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/analysis/a1/scores" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["score"] != "pass" || req["criterion_id"] != "greeting" {
			t.Errorf("request = %+v", req)
		}
		// Server normalizes to a different verdict.
		json.NewEncoder(w).Encode(map[string]interface{}{"score": "unclear", "comment": "needs review"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	score, comment, err := client.ConfirmScore(context.Background(), "a1", "beginning", "greeting", models.ScorePass, nil)
	if err != nil {
		t.Fatalf("ConfirmScore: %v", err)
	}
	if score != models.ScoreUnclear {
		t.Fatalf("score = %s, want the server-acknowledged value", score)
	}
	if comment == nil || *comment != "needs review" {
		t.Fatalf("comment = %v", comment)
	}
}

func TestConfirmScoreBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, _, err := client.ConfirmScore(context.Background(), "a1", "c", "x", models.ScoreFail, nil); err == nil {
		t.Fatal("expected error on backend failure")
	}
}

func TestConfirmScoreUnknownToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"score": "maybe"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, _, err := client.ConfirmScore(context.Background(), "a1", "c", "x", models.ScoreFail, nil); err == nil {
		t.Fatal("expected error on unknown score token")
	}
}
