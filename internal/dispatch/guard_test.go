package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kabboss/livreur-dispatch/internal/db"
	mock_database "github.com/kabboss/livreur-dispatch/internal/db/mocks"
	"github.com/kabboss/livreur-dispatch/internal/dispatch"
	mock_dispatch "github.com/kabboss/livreur-dispatch/internal/dispatch/mocks"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

const assignmentTopic = "order-assignments"

func validRequest() dispatch.ClaimRequest {
	return dispatch.ClaimRequest{
		OrderID:      "ORD-1",
		ServiceType:  repository.ServiceFood,
		DriverID:     "D1",
		DriverName:   "Issa Traore",
		DriverPhone1: "+22670000001",
		Location:     &dispatch.Location{Latitude: 12.37, Longitude: -1.53},
	}
}

func unassignedOrder() *repository.Order {
	return &repository.Order{
		ID:          "ORD-1",
		ServiceType: repository.ServiceFood,
		Status:      repository.StatusUnassigned,
		ClientName:  "Awa Kabore",
		ClientPhone: "+22670000009",
		Version:     3,
	}
}

func assignedOrder(driverID, driverName string) *repository.Order {
	o := unassignedOrder()
	o.Status = repository.StatusAssigned
	o.DriverID = &driverID
	o.DriverName = &driverName
	o.Version = 4
	return o
}

type guardMocks struct {
	db      *mock_database.MockDB
	tx      *mock_database.MockTx
	orders  *mock_dispatch.MockOrderRepository
	records *mock_dispatch.MockAssignmentRecordRepository
	outbox  *mock_dispatch.MockOutboxRepository
}

func newGuard(t *testing.T) (*dispatch.Guard, guardMocks) {
	ctrl := gomock.NewController(t)
	m := guardMocks{
		db:      mock_database.NewMockDB(ctrl),
		tx:      mock_database.NewMockTx(ctrl),
		orders:  mock_dispatch.NewMockOrderRepository(ctrl),
		records: mock_dispatch.NewMockAssignmentRecordRepository(ctrl),
		outbox:  mock_dispatch.NewMockOutboxRepository(ctrl),
	}
	guard := dispatch.NewGuard(m.db, m.orders, m.records, m.outbox, assignmentTopic)
	return guard, m
}

func TestClaimValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*dispatch.ClaimRequest)
		wantFld string
	}{
		{"missing order id", func(r *dispatch.ClaimRequest) { r.OrderID = "" }, "orderId"},
		{"missing service type", func(r *dispatch.ClaimRequest) { r.ServiceType = "" }, "serviceType"},
		{"unknown service type", func(r *dispatch.ClaimRequest) { r.ServiceType = "gas" }, "serviceType"},
		{"missing driver id", func(r *dispatch.ClaimRequest) { r.DriverID = "" }, "driverId"},
		{"missing driver name", func(r *dispatch.ClaimRequest) { r.DriverName = "" }, "driverName"},
		{"missing primary phone", func(r *dispatch.ClaimRequest) { r.DriverPhone1 = "" }, "driverPhone1"},
		{"missing location", func(r *dispatch.ClaimRequest) { r.Location = nil }, "driverLocation"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// No expectations on any mock: validation must reject the request
			// before a single storage call, even when the order would not
			// resolve anyway.
			guard, _ := newGuard(t)

			req := validRequest()
			req.OrderID = "NO-SUCH-ORDER"
			tc.mutate(&req)

			_, err := guard.Claim(ctx, req)

			var vErr *dispatch.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.wantFld, vErr.Field)
		})
	}
}

func TestClaimOrderNotFound(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(nil, repository.ErrObjectNotFound)

	_, err := guard.Claim(ctx, validRequest())
	assert.ErrorIs(t, err, dispatch.ErrOrderNotFound)
}

func TestClaimFastPathConflict(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	// Already-claimed order is rejected on the pre-check read, before any
	// transaction is opened (no BeginTx expectation).
	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(assignedOrder("D9", "Moussa Ouedraogo"), nil)

	_, err := guard.Claim(ctx, validRequest())

	var conflict *dispatch.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "D9", conflict.CurrentDriverID)
	assert.Equal(t, "Moussa Ouedraogo", conflict.CurrentDriverName)
}

func TestClaimSameDriverIsStillConflict(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	// The winner re-claiming its own order gets the same conflict as anyone
	// else; there is no self-reassignment special case.
	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(assignedOrder("D1", "Issa Traore"), nil)

	_, err := guard.Claim(ctx, validRequest())

	var conflict *dispatch.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "D1", conflict.CurrentDriverID)
}

func TestClaimRaceDetectedOnReread(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(unassignedOrder(), nil)
	m.db.EXPECT().BeginTx(gomock.Any()).Return(m.tx, nil)
	m.orders.EXPECT().
		GetByIDTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1").
		Return(assignedOrder("D2", "Salif Sanou"), nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	_, err := guard.Claim(ctx, validRequest())

	var conflict *dispatch.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "D2", conflict.CurrentDriverID)
}

func TestClaimRaceDetectedByConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(unassignedOrder(), nil)
	m.db.EXPECT().BeginTx(gomock.Any()).Return(m.tx, nil)

	// The in-transaction re-read still looks unassigned, but another writer
	// commits between the re-read and the update: zero rows match the
	// conditional predicate.
	gomock.InOrder(
		m.orders.EXPECT().
			GetByIDTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1").
			Return(unassignedOrder(), nil),
		m.orders.EXPECT().
			ClaimTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1", gomock.Any()).
			Return(int64(0), nil),
		m.orders.EXPECT().
			GetByIDTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1").
			Return(assignedOrder("D3", "Abdoul Zongo"), nil),
	)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	_, err := guard.Claim(ctx, validRequest())

	var conflict *dispatch.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "D3", conflict.CurrentDriverID)
	assert.Equal(t, "Abdoul Zongo", conflict.CurrentDriverName)
}

func TestClaimSuccess(t *testing.T) {
	ctx := context.Background()
	guard, m := newGuard(t)

	m.orders.EXPECT().
		FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
		Return(unassignedOrder(), nil)
	m.db.EXPECT().BeginTx(gomock.Any()).Return(m.tx, nil)
	m.orders.EXPECT().
		GetByIDTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1").
		Return(unassignedOrder(), nil)

	m.orders.EXPECT().
		ClaimTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ db.Tx, _ repository.Partition, _ string, b repository.DriverBinding) (int64, error) {
			assert.Equal(t, "D1", b.DriverID)
			assert.Equal(t, "Issa Traore", b.DriverName)
			assert.Equal(t, "+22670000001", b.DriverPhone1)
			assert.Nil(t, b.DriverPhone2)
			return 1, nil
		})

	m.records.EXPECT().
		CreateTx(gomock.Any(), m.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ db.Tx, record *repository.AssignmentRecord) error {
			assert.True(t, record.Active)
			assert.Equal(t, "ORD-1", record.OrderID)
			assert.Equal(t, repository.ServiceFood, record.ServiceType)

			var history []repository.PositionEvent
			require.NoError(t, json.Unmarshal(record.PositionHistory, &history))
			require.Len(t, history, 1)
			assert.Equal(t, repository.PositionEventAssignment, history[0].EventType)
			assert.Equal(t, 12.37, history[0].Latitude)

			var snapshot repository.Order
			require.NoError(t, json.Unmarshal(record.OrderSnapshot, &snapshot))
			assert.Equal(t, repository.StatusUnassigned, snapshot.Status)
			return nil
		})

	m.outbox.EXPECT().
		CreateTx(gomock.Any(), m.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
			assert.Equal(t, assignmentTopic, task.Topic)

			var payload repository.OrderAssignedPayload
			require.NoError(t, json.Unmarshal(task.Payload, &payload))
			assert.Equal(t, "ORD-1", payload.OrderID)
			assert.Equal(t, "D1", payload.DriverID)
			return nil
		})

	m.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	// Deferred rollback after a successful commit is a no-op.
	m.tx.EXPECT().Rollback(gomock.Any()).Return(pgx.ErrTxClosed).AnyTimes()

	result, err := guard.Claim(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "ORD-1", result.OrderID)
	assert.Equal(t, repository.ServiceFood, result.ServiceType)
	assert.Equal(t, "D1", result.DriverID)
	assert.Equal(t, repository.StatusAssigned, result.Status)
	assert.WithinDuration(t, time.Now().UTC(), result.AssignedAt, 5*time.Second)
}

func TestClaimTransientFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("begin tx fails", func(t *testing.T) {
		guard, m := newGuard(t)

		m.orders.EXPECT().
			FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
			Return(unassignedOrder(), nil)
		m.db.EXPECT().BeginTx(gomock.Any()).Return(nil, errors.New("pool exhausted"))

		_, err := guard.Claim(ctx, validRequest())

		var tErr *dispatch.TransientError
		assert.ErrorAs(t, err, &tErr)
	})

	t.Run("record insert fails and rolls back", func(t *testing.T) {
		guard, m := newGuard(t)

		m.orders.EXPECT().
			FindByCandidateKeys(gomock.Any(), gomock.Any(), "ORD-1").
			Return(unassignedOrder(), nil)
		m.db.EXPECT().BeginTx(gomock.Any()).Return(m.tx, nil)
		m.orders.EXPECT().
			GetByIDTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1").
			Return(unassignedOrder(), nil)
		m.orders.EXPECT().
			ClaimTx(gomock.Any(), m.tx, gomock.Any(), "ORD-1", gomock.Any()).
			Return(int64(1), nil)
		m.records.EXPECT().
			CreateTx(gomock.Any(), m.tx, gomock.Any()).
			Return(errors.New("connection reset"))
		// No Commit expectation: the transaction must only be rolled back.
		m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err := guard.Claim(ctx, validRequest())

		var tErr *dispatch.TransientError
		assert.ErrorAs(t, err, &tErr)
	})
}

// fakeStore implements the guard's dependencies over one shared order with
// real locking, so concurrent claims genuinely race on the conditional
// update the way they would against the database.
type fakeStore struct {
	mu      sync.Mutex
	order   repository.Order
	records []*repository.AssignmentRecord
	tasks   []*repository.OutboxTask
}

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }
func (fakeTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return nil, nil
}
func (fakeTx) Get(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (fakeTx) Select(context.Context, interface{}, string, ...interface{}) error { return nil }

func (s *fakeStore) BeginTx(context.Context) (db.Tx, error) { return fakeTx{}, nil }
func (s *fakeStore) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return nil, nil
}
func (s *fakeStore) ExecQueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }
func (s *fakeStore) Get(context.Context, interface{}, string, ...interface{}) error {
	return nil
}
func (s *fakeStore) Select(context.Context, interface{}, string, ...interface{}) error {
	return nil
}

func (s *fakeStore) snapshot() *repository.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.order
	return &o
}

func (s *fakeStore) FindByCandidateKeys(_ context.Context, _ repository.Partition, ref string) (*repository.Order, error) {
	if ref != s.order.ID {
		return nil, repository.ErrObjectNotFound
	}
	return s.snapshot(), nil
}

func (s *fakeStore) GetByIDTx(_ context.Context, _ db.Tx, _ repository.Partition, id string) (*repository.Order, error) {
	if id != s.order.ID {
		return nil, repository.ErrObjectNotFound
	}
	return s.snapshot(), nil
}

func (s *fakeStore) ClaimTx(_ context.Context, _ db.Tx, _ repository.Partition, id string, b repository.DriverBinding) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order.DriverID != nil || s.order.Status != repository.StatusUnassigned {
		return 0, nil
	}
	s.order.DriverID = &b.DriverID
	s.order.DriverName = &b.DriverName
	s.order.Status = repository.StatusAssigned
	s.order.Version++
	return 1, nil
}

func (s *fakeStore) CreateRecordTx(_ context.Context, _ db.Tx, record *repository.AssignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) CreateTaskTx(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

type recordRepoFunc func(ctx context.Context, tx db.Tx, record *repository.AssignmentRecord) error

func (f recordRepoFunc) CreateTx(ctx context.Context, tx db.Tx, record *repository.AssignmentRecord) error {
	return f(ctx, tx, record)
}

type outboxRepoFunc func(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error

func (f outboxRepoFunc) CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error {
	return f(ctx, tx, task)
}

func TestClaimMutualExclusion(t *testing.T) {
	const claimants = 32

	store := &fakeStore{order: *unassignedOrder()}
	guard := dispatch.NewGuard(
		store,
		store,
		recordRepoFunc(store.CreateRecordTx),
		outboxRepoFunc(store.CreateTaskTx),
		assignmentTopic,
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			req := validRequest()
			req.DriverID = fmt.Sprintf("D%d", n)
			req.DriverName = fmt.Sprintf("Driver %d", n)

			result, err := guard.Claim(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, result.DriverID)
				return
			}
			var conflict *dispatch.ConflictError
			if errors.As(err, &conflict) {
				conflicts++
				return
			}
			t.Errorf("unexpected error kind: %v", err)
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1, "exactly one claimant must win")
	assert.Equal(t, claimants-1, conflicts)

	final := store.snapshot()
	require.NotNil(t, final.DriverID)
	assert.Equal(t, winners[0], *final.DriverID)
	assert.Equal(t, repository.StatusAssigned, final.Status)

	require.Len(t, store.records, 1, "only the winner creates an assignment record")
	assert.Equal(t, winners[0], store.records[0].DriverID)
	require.Len(t, store.tasks, 1)
}
