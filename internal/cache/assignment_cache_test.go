package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabboss/livreur-dispatch/internal/repository"
)

type stubRecordRepo struct {
	records []*repository.AssignmentRecord
	err     error
}

func (s *stubRecordRepo) GetAllActive(context.Context) ([]*repository.AssignmentRecord, error) {
	return s.records, s.err
}

func TestAssignmentCacheLoadInitialData(t *testing.T) {
	repo := &stubRecordRepo{records: []*repository.AssignmentRecord{
		{ServiceType: repository.ServiceFood, OrderID: "ORD-1", DriverID: "D1", DriverName: "Issa", CreatedAt: time.Now()},
		{ServiceType: repository.ServicePackages, OrderID: "PKG-7", DriverID: "D2", DriverName: "Awa", CreatedAt: time.Now()},
	}}

	c := NewAssignmentCache(repo)
	require.NoError(t, c.LoadInitialData(context.Background()))

	view, found := c.Get(repository.ServiceFood, "ORD-1")
	require.True(t, found)
	assert.Equal(t, "D1", view.DriverID)

	_, found = c.Get(repository.ServiceFood, "PKG-7")
	assert.False(t, found, "service type is part of the key")
}

func TestAssignmentCacheLoadError(t *testing.T) {
	repo := &stubRecordRepo{err: errors.New("db down")}
	c := NewAssignmentCache(repo)
	assert.Error(t, c.LoadInitialData(context.Background()))
}

func TestAssignmentCacheSetDelete(t *testing.T) {
	c := NewAssignmentCache(&stubRecordRepo{})

	c.Set(AssignmentView{ServiceType: repository.ServiceFood, OrderID: "ORD-1", DriverID: "D1"})
	_, found := c.Get(repository.ServiceFood, "ORD-1")
	require.True(t, found)

	c.Delete(repository.ServiceFood, "ORD-1")
	_, found = c.Get(repository.ServiceFood, "ORD-1")
	assert.False(t, found)
}
