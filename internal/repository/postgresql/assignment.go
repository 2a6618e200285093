package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/kabboss/livreur-dispatch/internal/db"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

const assignmentColumns = `id, service_type, order_id, order_snapshot,
        driver_id, driver_name, driver_phone1, driver_phone2,
        position_history, active, created_at`

type AssignmentRecordRepo struct {
	db db.DB
}

func NewAssignmentRecordRepo(db db.DB) *AssignmentRecordRepo {
	return &AssignmentRecordRepo{db: db}
}

// CreateTx inserts the audit record inside the claim transaction so the order
// mutation and the record are committed as one unit.
func (r *AssignmentRecordRepo) CreateTx(ctx context.Context, tx db.Tx, record *repository.AssignmentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
        INSERT INTO assignment_records (
            id, service_type, order_id, order_snapshot, driver_id, driver_name,
            driver_phone1, driver_phone2, position_history, active, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, record.ID, record.ServiceType, record.OrderID, record.OrderSnapshot,
		record.DriverID, record.DriverName, record.DriverPhone1, record.DriverPhone2,
		record.PositionHistory, record.Active, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assignment record: %w", err)
	}
	return nil
}

// GetActiveByOrder returns the active record for an order, if any. At most one
// exists at a time; the claim transaction is what enforces that.
func (r *AssignmentRecordRepo) GetActiveByOrder(ctx context.Context, serviceType, orderID string) (*repository.AssignmentRecord, error) {
	var record repository.AssignmentRecord
	err := r.db.Get(ctx, &record, fmt.Sprintf(`
        SELECT %s FROM assignment_records
        WHERE service_type = $1 AND order_id = $2 AND active = true
    `, assignmentColumns), serviceType, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetAllActive lists all active records, used to warm the read cache at
// startup.
func (r *AssignmentRecordRepo) GetAllActive(ctx context.Context) ([]*repository.AssignmentRecord, error) {
	var records []*repository.AssignmentRecord
	err := r.db.Select(ctx, &records, fmt.Sprintf(`
        SELECT %s FROM assignment_records WHERE active = true
    `, assignmentColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list active assignment records: %w", err)
	}
	return records, nil
}

// AppendPosition appends a position event to the record's history. The
// jsonb concatenation keeps the list append-only without a read-modify-write.
func (r *AssignmentRecordRepo) AppendPosition(ctx context.Context, recordID uuid.UUID, event repository.PositionEvent) error {
	payload, err := json.Marshal([]repository.PositionEvent{event})
	if err != nil {
		return fmt.Errorf("failed to marshal position event: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
        UPDATE assignment_records
        SET position_history = position_history || $2::jsonb
        WHERE id = $1 AND active = true
    `, recordID, payload)
	if err != nil {
		return fmt.Errorf("failed to append position event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}
