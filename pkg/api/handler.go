package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"call-review/pkg/models"
	"call-review/pkg/playback"
	"call-review/pkg/scoring"
	"call-review/pkg/session"

	"github.com/gorilla/mux"
)

type Handlers struct {
	manager *session.Manager
}

func NewHandlers(manager *session.Manager) *Handlers {
	return &Handlers{manager: manager}
}

// Register mounts the review-session routes.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/sessions", h.OpenSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.GetSessionHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.CloseSessionHandler).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/switch", h.SwitchSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/playback", h.PlaybackCommandHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/scores", h.SetScoreHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/comment", h.SetCommentHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/statistics", h.StatisticsHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}/ws", h.WebSocketHandler)
}

type openSessionRequest struct {
	AnalysisID  string `json:"analysis_id"`
	ChecklistID string `json:"checklist_id"`
	MediaRef    string `json:"media_ref,omitempty"`
}

func (h *Handlers) OpenSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AnalysisID == "" || req.ChecklistID == "" {
		http.Error(w, "analysis_id and checklist_id are required", http.StatusBadRequest)
		return
	}

	s, err := h.manager.Open(r.Context(), req.AnalysisID, req.ChecklistID, req.MediaRef)
	if err != nil {
		log.Printf("api: open session failed: %v", err)
		http.Error(w, "Failed to open session", http.StatusBadGateway)
		return
	}

	writeJSON(w, s.Snapshot())
}

func (h *Handlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.Snapshot())
}

func (h *Handlers) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Close(id); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SwitchSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AnalysisID == "" || req.ChecklistID == "" {
		http.Error(w, "analysis_id and checklist_id are required", http.StatusBadRequest)
		return
	}

	s, err := h.manager.Switch(r.Context(), id, req.AnalysisID, req.ChecklistID, req.MediaRef)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Printf("api: switch session failed: %v", err)
		http.Error(w, "Failed to switch session", http.StatusBadGateway)
		return
	}
	writeJSON(w, s.Snapshot())
}

type playbackCommand struct {
	Action    string   `json:"action"`
	Time      *float64 `json:"time,omitempty"`
	SegmentID string   `json:"segment_id,omitempty"`
	Rate      *float64 `json:"rate,omitempty"`
	Volume    *int     `json:"volume,omitempty"`
	Muted     *bool    `json:"muted,omitempty"`
	MediaRef  string   `json:"media_ref,omitempty"`
}

func (h *Handlers) PlaybackCommandHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var cmd playbackCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch cmd.Action {
	case "toggle":
		err = s.TogglePlay()
	case "seek":
		if cmd.Time == nil {
			http.Error(w, "time is required for seek", http.StatusBadRequest)
			return
		}
		err = s.Seek(*cmd.Time)
	case "seek_segment":
		if cmd.SegmentID == "" {
			http.Error(w, "segment_id is required for seek_segment", http.StatusBadRequest)
			return
		}
		err = s.SeekToSegment(cmd.SegmentID)
	case "loop":
		err = s.ToggleSegmentLoop(cmd.SegmentID)
	case "rate":
		if cmd.Rate == nil {
			http.Error(w, "rate is required", http.StatusBadRequest)
			return
		}
		err = s.SetRate(*cmd.Rate)
	case "volume":
		if cmd.Volume == nil && cmd.Muted == nil {
			http.Error(w, "volume or muted is required", http.StatusBadRequest)
			return
		}
		state := s.PlaybackState()
		volume, muted := state.Volume, state.Muted
		if cmd.Volume != nil {
			volume = *cmd.Volume
		}
		if cmd.Muted != nil {
			muted = *cmd.Muted
		}
		err = s.SetVolume(volume, muted)
	case "reload":
		err = s.Reload(cmd.MediaRef)
	default:
		http.Error(w, "Unknown playback action", http.StatusBadRequest)
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, playback.ErrNotReady), errors.Is(err, playback.ErrMediaLoadFailed):
			status = http.StatusConflict
		case errors.Is(err, playback.ErrUnknownSegment):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, s.PlaybackState())
}

type setScoreRequest struct {
	CategoryID  string  `json:"category_id"`
	CriterionID string  `json:"criterion_id"`
	Score       string  `json:"score"`
	Comment     *string `json:"comment,omitempty"`
}

func (h *Handlers) SetScoreHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	score := models.Score(req.Score)
	if !score.Valid() || !score.Scored() {
		http.Error(w, "Invalid score value", http.StatusBadRequest)
		return
	}

	// The edit is applied optimistically; the response reflects the local
	// state and any remote failure arrives via the session event stream.
	if err := s.SetScore(r.Context(), req.CategoryID, req.CriterionID, score, req.Comment); err != nil {
		if errors.Is(err, scoring.ErrUnknownCriterion) {
			http.Error(w, "Unknown criterion", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":     "applied",
		"statistics": s.Statistics(),
	})
}

type setCommentRequest struct {
	CategoryID  string `json:"category_id"`
	CriterionID string `json:"criterion_id"`
	Comment     string `json:"comment"`
}

func (h *Handlers) SetCommentHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.SetComment(r.Context(), req.CategoryID, req.CriterionID, req.Comment); err != nil {
		if errors.Is(err, scoring.ErrUnknownCriterion) {
			http.Error(w, "Unknown criterion", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"status": "applied"})
}

func (h *Handlers) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.Statistics())
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	s, err := h.manager.Get(id)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
