//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kabboss/livreur-dispatch/internal/cache"
	"github.com/kabboss/livreur-dispatch/internal/dispatch"
	"github.com/kabboss/livreur-dispatch/internal/kafka"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

type Dispatcher interface {
	Claim(ctx context.Context, req dispatch.ClaimRequest) (*dispatch.ClaimResult, error)
}

type DriverAuth interface {
	ValidateDriver(ctx context.Context, username, password string) (bool, error)
}

type AssignmentReader interface {
	GetActiveByOrder(ctx context.Context, serviceType, orderID string) (*repository.AssignmentRecord, error)
}

type Server struct {
	guard        Dispatcher
	drivers      DriverAuth
	records      AssignmentReader
	cache        *cache.AssignmentCache
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager
}

func New(guard Dispatcher, drivers DriverAuth, records AssignmentReader, assignmentCache *cache.AssignmentCache, producer kafka.Producer, auditTopic string, logger *zap.Logger) *Server {
	auditManager := NewAuditManager(2, 5, 500*time.Millisecond, producer, auditTopic)
	return &Server{
		guard:        guard,
		drivers:      drivers,
		records:      records,
		cache:        assignmentCache,
		logger:       logger,
		AuditManager: auditManager,
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	log.Printf("Dispatch server starting on port %s", port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	log.Println("HTTP server shutdown completed")

	s.AuditManager.Shutdown(ctx)
	log.Println("Server shutdown completed successfully")

	return nil
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.basicAuthMiddleware)
	api.Use(s.auditLogMiddleware)
	api.HandleFunc("/orders/assign", s.handleAssignOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{serviceType}/{orderID}/assignment", s.handleGetAssignment).Methods(http.MethodGet)

	return corsMiddleware(router)
}

// corsMiddleware applies the platform-wide CORS convention: the mobile driver
// app calls these endpoints from arbitrary origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		valid, err := s.drivers.ValidateDriver(r.Context(), username, password)
		if err != nil || !valid {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
