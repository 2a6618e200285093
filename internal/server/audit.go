package server

import (
	"time"
)

// AuditLogEntry captures one API call for the dispatch audit trail. Entries
// flow through the AuditManager off the request path.
type AuditLogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Handler     string    `json:"handler"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	StatusCode  int       `json:"status_code"`
	DriverID    string    `json:"driver_id,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	ServiceType string    `json:"service_type,omitempty"`
	Request     string    `json:"request,omitempty"`
	Response    string    `json:"response,omitempty"`
}
