package postgresql_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "github.com/kabboss/livreur-dispatch/internal/db/mocks"
	"github.com/kabboss/livreur-dispatch/internal/repository"
	"github.com/kabboss/livreur-dispatch/internal/repository/postgresql"
)

func TestAssignmentRecordRepo_CreateTx(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and timestamp when missing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		repo := postgresql.NewAssignmentRecordRepo(mockDB)

		record := &repository.AssignmentRecord{
			ServiceType:     repository.ServiceFood,
			OrderID:         "ORD-1",
			OrderSnapshot:   json.RawMessage(`{}`),
			DriverID:        "D1",
			DriverName:      "Issa Traore",
			DriverPhone1:    "+22670000001",
			PositionHistory: json.RawMessage(`[]`),
			Active:          true,
		}

		mockTx.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("INSERT 0 1"), nil)

		require.NoError(t, repo.CreateTx(ctx, mockTx, record))
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.False(t, record.CreatedAt.IsZero())
	})
}

func TestAssignmentRecordRepo_GetActiveByOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewAssignmentRecordRepo(mockDB)

		mockDB.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any(), repository.ServiceFood, "ORD-1").
			DoAndReturn(func(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
				record := dest.(*repository.AssignmentRecord)
				record.OrderID = "ORD-1"
				record.DriverID = "D1"
				record.Active = true
				return nil
			})

		record, err := repo.GetActiveByOrder(ctx, repository.ServiceFood, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, "D1", record.DriverID)
	})

	t.Run("none active", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewAssignmentRecordRepo(mockDB)

		mockDB.EXPECT().
			Get(gomock.Any(), gomock.Any(), gomock.Any(), repository.ServiceFood, "ORD-9").
			Return(pgx.ErrNoRows)

		_, err := repo.GetActiveByOrder(ctx, repository.ServiceFood, "ORD-9")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}

func TestAssignmentRecordRepo_AppendPosition(t *testing.T) {
	ctx := context.Background()
	recordID := uuid.New()

	t.Run("appends to active record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewAssignmentRecordRepo(mockDB)

		mockDB.EXPECT().
			Exec(gomock.Any(), gomock.Any(), recordID, gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		err := repo.AppendPosition(ctx, recordID, repository.PositionEvent{
			Latitude:  12.4,
			Longitude: -1.5,
			EventType: repository.PositionEventUpdate,
		})
		assert.NoError(t, err)
	})

	t.Run("retired record rejects appends", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewAssignmentRecordRepo(mockDB)

		mockDB.EXPECT().
			Exec(gomock.Any(), gomock.Any(), recordID, gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.AppendPosition(ctx, recordID, repository.PositionEvent{EventType: repository.PositionEventUpdate})
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}
