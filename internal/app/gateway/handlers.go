package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/gorilla/mux"
)

const maxBodySize = 1 << 12

type statusResponse struct {
	Matched            *bool  `json:"matched,omitempty"`
	Removed            bool   `json:"removed,omitempty"`
	PartnerID          string `json:"partnerId,omitempty"`
	PartnerUsername    string `json:"partnerUsername,omitempty"`
	CategoryAssigned   string `json:"categoryAssigned,omitempty"`
	DifficultyAssigned string `json:"difficultyAssigned,omitempty"`
	MatchID            string `json:"matchId,omitempty"`
}

func newStatusResponse(st queue.Status) statusResponse {
	switch st.State {
	case queue.StateMatched:
		matched := true
		return statusResponse{
			Matched:            &matched,
			PartnerID:          st.PartnerID,
			PartnerUsername:    st.PartnerUsername,
			CategoryAssigned:   st.CategoryAssigned,
			DifficultyAssigned: string(st.DifficultyAssigned),
			MatchID:            st.MatchID,
		}
	case queue.StateRemoved:
		return statusResponse{Removed: true}
	default:
		matched := false
		return statusResponse{Matched: &matched}
	}
}

type queuedResponse struct {
	InQueue bool `json:"inQueue"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.log.Warn("failed to write response", "error", err)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintln(w, "OK"); err != nil {
		g.log.Warn("failed to write health response", "error", err)
	}
}

func (g *Gateway) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body queue.EnqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		g.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if _, err := body.Validate(); err != nil {
		g.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if g.limiter.DenyEnqueue(body.UserID) {
		g.log.Debug("denying repeated enqueue", "userId", body.UserID)
		g.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "slow down"})
		return
	}

	req, err := g.repo.Enqueue(r.Context(), body)
	if errors.Is(err, queue.ErrInvalidRequest) {
		g.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		g.log.Error("enqueue failed", "userId", body.UserID, "error", err)
		g.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "enqueue failed"})
		return
	}

	if g.bus != nil {
		if err := g.bus.NotifyMatchmakeWorkers(r.Context(), req.UserID); err != nil {
			g.log.Warn("failed to notify matchmake workers", "userId", req.UserID, "error", err)
		}
	}
	g.log.Info("enqueued match request", "userId", req.UserID, "category", req.Category, "difficulty", req.Difficulty)
	g.writeJSON(w, http.StatusCreated, req)
}

func (g *Gateway) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := g.repo.Cancel(r.Context(), userID); err != nil {
		g.log.Error("cancel failed", "userId", userID, "error", err)
		g.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cancel failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	st, err := g.resolver.Resolve(r.Context(), userID)
	if err != nil {
		g.log.Error("status failed", "userId", userID, "error", err)
		g.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "status failed"})
		return
	}
	g.writeJSON(w, http.StatusOK, newStatusResponse(st))
}

func (g *Gateway) handleQueued(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	in, err := g.repo.InQueue(r.Context(), userID)
	if err != nil {
		g.log.Error("queued check failed", "userId", userID, "error", err)
		g.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "queued check failed"})
		return
	}
	g.writeJSON(w, http.StatusOK, queuedResponse{InQueue: in})
}
