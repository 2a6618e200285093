package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"github.com/kabboss/livreur-dispatch/internal/db"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

// orderColumns is the shared column list of the per-service order tables.
// Selected explicitly because the partitions also carry service-specific
// legacy columns that do not scan into repository.Order.
const orderColumns = `id, service_type, status, client_name, client_phone,
        pickup_addr, delivery_addr, driver_id, driver_name, driver_phone1,
        driver_phone2, driver_lat, driver_lng, assigned_at, version,
        created_at, updated_at`

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// FindByCandidateKeys resolves an order reference against the partition's
// candidate key columns, in order. The first matching row wins. Table and
// column names come from the static partition table, never from request
// input, so string interpolation is safe here.
func (r *OrderRepo) FindByCandidateKeys(ctx context.Context, part repository.Partition, ref string) (*repository.Order, error) {
	for _, col := range part.CandidateKeys {
		var order repository.Order
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", orderColumns, part.Table, col)
		err := r.db.Get(ctx, &order, query, ref)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		return &order, nil
	}
	return nil, repository.ErrObjectNotFound
}

// GetByIDTx re-reads an order by primary key inside a transaction. The claim
// path uses this to observe assignments that landed between the fast-path
// check and transaction start.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx db.Tx, part repository.Partition, id string) (*repository.Order, error) {
	var order repository.Order
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", orderColumns, part.Table)
	err := tx.Get(ctx, &order, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ClaimTx issues the conditional assignment update. The predicate demands the
// driver fields are still unset, so a writer that lost the race updates zero
// rows instead of overwriting the winner. Returns the number of rows updated.
func (r *OrderRepo) ClaimTx(ctx context.Context, tx db.Tx, part repository.Partition, id string, b repository.DriverBinding) (int64, error) {
	query := fmt.Sprintf(`
        UPDATE %s
        SET
            driver_id = $1,
            driver_name = $2,
            driver_phone1 = $3,
            driver_phone2 = $4,
            driver_lat = $5,
            driver_lng = $6,
            assigned_at = $7,
            status = $8,
            version = version + 1,
            updated_at = $7
        WHERE id = $9
          AND driver_id IS NULL
          AND status = $10
    `, part.Table)

	tag, err := tx.Exec(ctx, query,
		b.DriverID,
		b.DriverName,
		b.DriverPhone1,
		b.DriverPhone2,
		b.DriverLat,
		b.DriverLng,
		b.AssignedAt,
		repository.StatusAssigned,
		id,
		repository.StatusUnassigned,
	)
	if err != nil {
		return 0, fmt.Errorf("claim update on %s: %w", part.Table, err)
	}
	return tag.RowsAffected(), nil
}
