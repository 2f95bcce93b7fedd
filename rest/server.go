package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/zapflow/zapflow/engine"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/persistence"
	"github.com/zapflow/zapflow/queue"
)

type Server struct {
	http.Server
	Port    int
	storage persistence.Storage
	engine  *engine.Engine
	queue   *queue.DispatchQueue
}

func NewServer(httpPort int, storage persistence.Storage, eng *engine.Engine, dq *queue.DispatchQueue) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:    httpPort,
		storage: storage,
		engine:  eng,
		queue:   dq,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flows", s.HandleSaveFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/messages/incoming", s.HandleIncomingMessage).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/pause", s.HandlePauseExecution).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/resume", s.HandleResumeExecution).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id}/cancel", s.HandleCancelExecution).Methods(http.MethodPost)
	router.HandleFunc("/queue/messages", s.HandleEnqueue).Methods(http.MethodPost)
	router.HandleFunc("/queue/bulk", s.HandleBulkEnqueue).Methods(http.MethodPost)
	router.HandleFunc("/queue/pending", s.HandlePendingCount).Methods(http.MethodGet)
	router.HandleFunc("/queue/clear", s.HandleClearQueue).Methods(http.MethodPost)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info(fmt.Sprintf("starting http server on :%d", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.Method + " " + r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
