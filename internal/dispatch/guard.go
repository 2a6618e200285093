//go:generate mockgen -source ./guard.go -destination=./mocks/guard.go -package=mock_dispatch
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kabboss/livreur-dispatch/internal/db"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

type OrderRepository interface {
	FindByCandidateKeys(ctx context.Context, part repository.Partition, ref string) (*repository.Order, error)
	GetByIDTx(ctx context.Context, tx db.Tx, part repository.Partition, id string) (*repository.Order, error)
	ClaimTx(ctx context.Context, tx db.Tx, part repository.Partition, id string, b repository.DriverBinding) (int64, error)
}

type AssignmentRecordRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, record *repository.AssignmentRecord) error
}

type OutboxRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
}

type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

type ClaimRequest struct {
	OrderID      string
	ServiceType  string
	DriverID     string
	DriverName   string
	DriverPhone1 string
	DriverPhone2 string
	Location     *Location
}

type ClaimResult struct {
	OrderID     string
	ServiceType string
	DriverID    string
	DriverName  string
	AssignedAt  time.Time
	Status      string
}

// Guard binds a driver to an order at most once. All concurrency safety is
// delegated to the database transaction and the conditional update; the guard
// itself keeps no state between calls and is safe for any number of
// concurrent invocations.
type Guard struct {
	db      db.DB
	orders  OrderRepository
	records AssignmentRecordRepository
	outbox  OutboxRepository
	topic   string
	now     func() time.Time
}

func NewGuard(database db.DB, orders OrderRepository, records AssignmentRecordRepository, outbox OutboxRepository, assignmentTopic string) *Guard {
	return &Guard{
		db:      database,
		orders:  orders,
		records: records,
		outbox:  outbox,
		topic:   assignmentTopic,
		now:     time.Now,
	}
}

// Claim executes the single-shot assignment protocol:
//
//  1. validate input (no storage access before this passes),
//  2. resolve the order through the partition's ordered candidate keys,
//  3. fast-path rejection if the resolved row already carries a driver,
//  4. in one transaction: re-read by primary key, conditionally update the
//     driver fields guarded by "driver still unset", insert the
//     AssignmentRecord and the order.assigned outbox task,
//  5. commit.
//
// The first writer whose conditional update touches a row wins; every other
// claimant gets a *ConflictError no matter how the timing fell. Any failure
// rolls the transaction back, so a failed claim leaves no trace.
func (g *Guard) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	part, ok := repository.PartitionFor(req.ServiceType)
	if !ok {
		return nil, &ValidationError{Field: "serviceType", Reason: "is not a known service type"}
	}

	order, err := g.orders.FindByCandidateKeys(ctx, part, req.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, transient(err)
	}

	// Cheap rejection before paying for a transaction.
	if order.Assigned() {
		return nil, conflictFrom(order)
	}

	tx, err := g.db.BeginTx(ctx)
	if err != nil {
		return nil, transient(err)
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Re-read by primary key only: a secondary-key hit in step 2 must not be
	// trusted across the transaction boundary.
	current, err := g.orders.GetByIDTx(ctx, tx, part, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, transient(err)
	}
	if current.Assigned() {
		return nil, conflictFrom(current)
	}

	assignedAt := g.now().UTC()
	binding := repository.DriverBinding{
		DriverID:     req.DriverID,
		DriverName:   req.DriverName,
		DriverPhone1: req.DriverPhone1,
		DriverPhone2: optional(req.DriverPhone2),
		DriverLat:    req.Location.Latitude,
		DriverLng:    req.Location.Longitude,
		AssignedAt:   assignedAt,
	}

	updated, err := g.orders.ClaimTx(ctx, tx, part, order.ID, binding)
	if err != nil {
		return nil, transient(err)
	}
	if updated == 0 {
		// Another writer won between the re-read and the update. Try to name
		// the winner for the caller; the conflict stands either way.
		conflict := &ConflictError{}
		if winner, rerr := g.orders.GetByIDTx(ctx, tx, part, order.ID); rerr == nil {
			if c := conflictFrom(winner); c != nil {
				conflict = c
			}
		}
		return nil, conflict
	}

	record, err := g.buildRecord(current, req, assignedAt)
	if err != nil {
		return nil, transient(err)
	}
	if err := g.records.CreateTx(ctx, tx, record); err != nil {
		return nil, transient(err)
	}

	task, err := g.buildOutboxTask(order.ID, req, assignedAt)
	if err != nil {
		return nil, transient(err)
	}
	if err := g.outbox.CreateTx(ctx, tx, task); err != nil {
		return nil, transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, transient(err)
	}

	return &ClaimResult{
		OrderID:     order.ID,
		ServiceType: req.ServiceType,
		DriverID:    req.DriverID,
		DriverName:  req.DriverName,
		AssignedAt:  assignedAt,
		Status:      repository.StatusAssigned,
	}, nil
}

func (r *ClaimRequest) validate() error {
	switch {
	case r.OrderID == "":
		return &ValidationError{Field: "orderId", Reason: "is required"}
	case r.ServiceType == "":
		return &ValidationError{Field: "serviceType", Reason: "is required"}
	case r.DriverID == "":
		return &ValidationError{Field: "driverId", Reason: "is required"}
	case r.DriverName == "":
		return &ValidationError{Field: "driverName", Reason: "is required"}
	case r.DriverPhone1 == "":
		return &ValidationError{Field: "driverPhone1", Reason: "is required"}
	case r.Location == nil:
		return &ValidationError{Field: "driverLocation", Reason: "is required"}
	}
	return nil
}

func (g *Guard) buildRecord(order *repository.Order, req ClaimRequest, assignedAt time.Time) (*repository.AssignmentRecord, error) {
	snapshot, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order snapshot: %w", err)
	}

	history, err := json.Marshal([]repository.PositionEvent{{
		Latitude:   req.Location.Latitude,
		Longitude:  req.Location.Longitude,
		Accuracy:   req.Location.Accuracy,
		EventType:  repository.PositionEventAssignment,
		RecordedAt: assignedAt,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal position history: %w", err)
	}

	return &repository.AssignmentRecord{
		ServiceType:     req.ServiceType,
		OrderID:         order.ID,
		OrderSnapshot:   snapshot,
		DriverID:        req.DriverID,
		DriverName:      req.DriverName,
		DriverPhone1:    req.DriverPhone1,
		DriverPhone2:    optional(req.DriverPhone2),
		PositionHistory: history,
		Active:          true,
		CreatedAt:       assignedAt,
	}, nil
}

func (g *Guard) buildOutboxTask(orderID string, req ClaimRequest, assignedAt time.Time) (*repository.OutboxTask, error) {
	payload, err := json.Marshal(repository.OrderAssignedPayload{
		OrderID:     orderID,
		ServiceType: req.ServiceType,
		DriverID:    req.DriverID,
		DriverName:  req.DriverName,
		AssignedAt:  assignedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order.assigned payload: %w", err)
	}

	return &repository.OutboxTask{
		Payload: payload,
		Topic:   g.topic,
	}, nil
}

func conflictFrom(order *repository.Order) *ConflictError {
	if !order.Assigned() {
		return nil
	}
	c := &ConflictError{}
	if order.DriverID != nil {
		c.CurrentDriverID = *order.DriverID
	}
	if order.DriverName != nil {
		c.CurrentDriverName = *order.DriverName
	}
	return c
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
