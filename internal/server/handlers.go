package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kabboss/livreur-dispatch/internal/cache"
	"github.com/kabboss/livreur-dispatch/internal/dispatch"
	"github.com/kabboss/livreur-dispatch/internal/metrics"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

type assignRequest struct {
	OrderID        string  `json:"orderId"`
	ServiceType    string  `json:"serviceType"`
	DriverID       string  `json:"driverId"`
	DriverName     string  `json:"driverName"`
	DriverPhone1   string  `json:"driverPhone1"`
	DriverPhone2   string  `json:"driverPhone2"`
	DriverLocation *struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
	} `json:"driverLocation"`
}

type assignResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	ServiceType string `json:"serviceType"`
	DriverID    string `json:"driverId"`
	DriverName  string `json:"driverName"`
	AssignedAt  string `json:"assignedAt"`
	Status      string `json:"status"`
}

type conflictResponse struct {
	Error             string `json:"error"`
	IsAlreadyAssigned bool   `json:"isAlreadyAssigned"`
	CurrentDriver     string `json:"currentDriver,omitempty"`
	CurrentDriverID   string `json:"currentDriverId,omitempty"`
}

func (s *Server) handleAssignOrder(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claim := dispatch.ClaimRequest{
		OrderID:      req.OrderID,
		ServiceType:  req.ServiceType,
		DriverID:     req.DriverID,
		DriverName:   req.DriverName,
		DriverPhone1: req.DriverPhone1,
		DriverPhone2: req.DriverPhone2,
	}
	if req.DriverLocation != nil {
		claim.Location = &dispatch.Location{
			Latitude:  req.DriverLocation.Latitude,
			Longitude: req.DriverLocation.Longitude,
			Accuracy:  req.DriverLocation.Accuracy,
		}
	}

	start := time.Now()
	result, err := s.guard.Claim(r.Context(), claim)
	metrics.ClaimDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.respondClaimError(w, req, err)
		return
	}

	metrics.ClaimsSucceededTotal.Inc()
	s.logger.Info("order assigned",
		zap.String("order_id", result.OrderID),
		zap.String("service_type", result.ServiceType),
		zap.String("driver_id", result.DriverID),
	)

	s.cache.Set(cache.AssignmentView{
		ServiceType: result.ServiceType,
		OrderID:     result.OrderID,
		DriverID:    result.DriverID,
		DriverName:  result.DriverName,
		AssignedAt:  result.AssignedAt,
	})

	respondJSON(w, http.StatusOK, assignResponse{
		Success:     true,
		OrderID:     result.OrderID,
		ServiceType: result.ServiceType,
		DriverID:    result.DriverID,
		DriverName:  result.DriverName,
		AssignedAt:  result.AssignedAt.Format(time.RFC3339),
		Status:      result.Status,
	})
}

func (s *Server) respondClaimError(w http.ResponseWriter, req assignRequest, err error) {
	var vErr *dispatch.ValidationError
	if errors.As(err, &vErr) {
		metrics.ClaimErrorsTotal.WithLabelValues("validation").Inc()
		respondError(w, http.StatusBadRequest, vErr.Error())
		return
	}

	if errors.Is(err, dispatch.ErrOrderNotFound) {
		metrics.ClaimErrorsTotal.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	var conflict *dispatch.ConflictError
	if errors.As(err, &conflict) {
		metrics.ClaimConflictsTotal.WithLabelValues(req.ServiceType).Inc()
		s.logger.Info("claim conflict",
			zap.String("order_id", req.OrderID),
			zap.String("service_type", req.ServiceType),
			zap.String("losing_driver_id", req.DriverID),
			zap.String("current_driver_id", conflict.CurrentDriverID),
		)
		respondJSON(w, http.StatusConflict, conflictResponse{
			Error:             conflict.Error(),
			IsAlreadyAssigned: true,
			CurrentDriver:     conflict.CurrentDriverName,
			CurrentDriverID:   conflict.CurrentDriverID,
		})
		return
	}

	var tErr *dispatch.TransientError
	if errors.As(err, &tErr) {
		metrics.ClaimErrorsTotal.WithLabelValues("transient").Inc()
		s.logger.Error("claim failed on storage",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		respondError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, retry later")
		return
	}

	metrics.ClaimErrorsTotal.WithLabelValues("internal").Inc()
	s.logger.Error("claim failed", zap.String("order_id", req.OrderID), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Internal error")
}

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceType := vars["serviceType"]
	orderID := vars["orderID"]

	if !repository.KnownServiceType(serviceType) {
		respondError(w, http.StatusBadRequest, "Unknown service type")
		return
	}

	if view, found := s.cache.Get(serviceType, orderID); found {
		respondJSON(w, http.StatusOK, view)
		return
	}

	record, err := s.records.GetActiveByOrder(r.Context(), serviceType, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			respondError(w, http.StatusNotFound, "No active assignment for order")
			return
		}
		s.logger.Error("assignment lookup failed", zap.String("order_id", orderID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	view := cache.AssignmentView{
		ServiceType: record.ServiceType,
		OrderID:     record.OrderID,
		DriverID:    record.DriverID,
		DriverName:  record.DriverName,
		AssignedAt:  record.CreatedAt,
	}
	s.cache.Set(view)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
