package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zapflow/zapflow/engine"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveFlow(w http.ResponseWriter, r *http.Request) {
	var flow model.FlowDefinition
	if err := json.NewDecoder(r.Body).Decode(&flow); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow payload")
		return
	}
	defer r.Body.Close()
	if err := engine.ValidateFlow(&flow); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.SaveFlowDefinition(flow); err != nil {
		logger.Error("error saving flow", zap.String("flowId", flow.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error saving flow")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": flow.Id})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	flow, err := s.storage.GetFlowDefinition(id)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "error loading flow")
		return
	}
	respondWithJSON(w, http.StatusOK, flow)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.storage.DeleteFlowDefinition(id); err != nil {
		respondWithError(w, http.StatusInternalServerError, "error deleting flow")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) HandlePauseExecution(w http.ResponseWriter, r *http.Request) {
	s.executionAction(w, r, s.engine.PauseExecution)
}

func (s *Server) HandleResumeExecution(w http.ResponseWriter, r *http.Request) {
	s.executionAction(w, r, s.engine.ResumeExecution)
}

func (s *Server) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	s.executionAction(w, r, s.engine.CancelExecution)
}

func (s *Server) executionAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	id := mux.Vars(r)["id"]
	if err := action(id); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}
