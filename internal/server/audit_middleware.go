package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := AuditLogEntry{
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   getHandlerName(r.URL.Path, r.Method),
		}

		if username, _, ok := r.BasicAuth(); ok {
			entry.DriverID = username
		}

		if vars := mux.Vars(r); vars != nil {
			entry.OrderID = vars["orderID"]
			entry.ServiceType = vars["serviceType"]
		}

		if r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)

			// Claim requests carry the order reference in the body, not the path.
			if entry.OrderID == "" && len(requestBody) > 0 {
				var claimRequest struct {
					OrderID     string `json:"orderId"`
					ServiceType string `json:"serviceType"`
				}
				if err := json.Unmarshal(requestBody, &claimRequest); err == nil {
					entry.OrderID = claimRequest.OrderID
					entry.ServiceType = claimRequest.ServiceType
				}
			}
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func getHandlerName(path string, method string) string {
	switch {
	case strings.HasSuffix(path, "/orders/assign") && method == http.MethodPost:
		return "handleAssignOrder"
	case strings.HasSuffix(path, "/assignment") && method == http.MethodGet:
		return "handleGetAssignment"
	case strings.HasSuffix(path, "/health"):
		return "handleHealth"
	}
	return "unknown"
}
