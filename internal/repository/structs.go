package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("not found")

// Order is the shared row shape of the per-service order tables
// (package_orders, food_orders, shopping_orders, pharmacy_orders).
// Driver fields are NULL until the order is claimed.
type Order struct {
	ID           string     `db:"id"`
	ServiceType  string     `db:"service_type"`
	Status       string     `db:"status"`
	ClientName   string     `db:"client_name"`
	ClientPhone  string     `db:"client_phone"`
	PickupAddr   string     `db:"pickup_addr"`
	DeliveryAddr string     `db:"delivery_addr"`
	DriverID     *string    `db:"driver_id"`
	DriverName   *string    `db:"driver_name"`
	DriverPhone1 *string    `db:"driver_phone1"`
	DriverPhone2 *string    `db:"driver_phone2"`
	DriverLat    *float64   `db:"driver_lat"`
	DriverLng    *float64   `db:"driver_lng"`
	AssignedAt   *time.Time `db:"assigned_at"`
	Version      int64      `db:"version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Assigned reports whether the row already carries a claim. Any of the three
// signals counts: the legacy writers were not consistent about which they set.
func (o *Order) Assigned() bool {
	if o.DriverID != nil && *o.DriverID != "" {
		return true
	}
	if o.DriverName != nil && *o.DriverName != "" {
		return true
	}
	return o.Status != "" && o.Status != StatusUnassigned
}

const (
	StatusUnassigned = "unassigned"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// AssignmentRecord is the audit entity created in the same transaction as a
// successful claim. position_history is an append-only JSON array of
// PositionEvent.
type AssignmentRecord struct {
	ID              uuid.UUID       `db:"id"`
	ServiceType     string          `db:"service_type"`
	OrderID         string          `db:"order_id"`
	OrderSnapshot   json.RawMessage `db:"order_snapshot"`
	DriverID        string          `db:"driver_id"`
	DriverName      string          `db:"driver_name"`
	DriverPhone1    string          `db:"driver_phone1"`
	DriverPhone2    *string         `db:"driver_phone2"`
	PositionHistory json.RawMessage `db:"position_history"`
	Active          bool            `db:"active"`
	CreatedAt       time.Time       `db:"created_at"`
}

// DriverBinding is the projection a claim writes onto an order row.
type DriverBinding struct {
	DriverID     string
	DriverName   string
	DriverPhone1 string
	DriverPhone2 *string
	DriverLat    float64
	DriverLng    float64
	AssignedAt   time.Time
}

type PositionEvent struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	EventType  string    `json:"event_type"`
	RecordedAt time.Time `json:"recorded_at"`
}

const (
	PositionEventAssignment = "assignment"
	PositionEventUpdate     = "position_update"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

// OutboxTask carries a post-commit event through the outbox table. Tasks are
// written inside the claim transaction and published asynchronously, so a
// publish failure can never undo an assignment.
type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// OrderAssignedPayload is the outbox payload for the order.assigned event
// consumed by the notification side (telling other drivers the order is gone).
type OrderAssignedPayload struct {
	OrderID     string    `json:"order_id"`
	ServiceType string    `json:"service_type"`
	DriverID    string    `json:"driver_id"`
	DriverName  string    `json:"driver_name"`
	AssignedAt  time.Time `json:"assigned_at"`
}
