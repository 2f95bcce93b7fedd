package rest

import (
	"encoding/json"
	"net/http"

	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleIncomingMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.IncomingMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid message payload")
		return
	}
	defer r.Body.Close()
	lead, err := s.storage.GetLead(msg.LeadId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "lead not found")
		return
	}
	conversation, err := s.storage.GetConversation(msg.ConversationId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err := s.engine.ProcessIncomingMessage(r.Context(), msg, lead, conversation); err != nil {
		logger.Error("error processing incoming message", zap.String("leadId", msg.LeadId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error processing message")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	var msg model.QueuedMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid message payload")
		return
	}
	defer r.Body.Close()
	if len(msg.LeadId) == 0 || len(msg.Content) == 0 {
		respondWithError(w, http.StatusBadRequest, "leadId and content are required")
		return
	}
	if err := s.queue.Add(&msg); err != nil {
		respondWithError(w, http.StatusInternalServerError, "error enqueueing message")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": msg.Id})
}

func (s *Server) HandleBulkEnqueue(w http.ResponseWriter, r *http.Request) {
	var req model.BulkEnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid bulk payload")
		return
	}
	defer r.Body.Close()
	count, err := s.queue.AddBulk(req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"queued": count})
}

func (s *Server) HandlePendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.queue.PendingCount()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error counting pending messages")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"pending": count})
}

func (s *Server) HandleClearQueue(w http.ResponseWriter, r *http.Request) {
	campaignId := r.URL.Query().Get("campaignId")
	cancelled, err := s.queue.Clear(campaignId)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error clearing queue")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}
