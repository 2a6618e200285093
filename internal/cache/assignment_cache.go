package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kabboss/livreur-dispatch/internal/metrics"
	"github.com/kabboss/livreur-dispatch/internal/repository"
)

type RecordRepository interface {
	GetAllActive(ctx context.Context) ([]*repository.AssignmentRecord, error)
}

// AssignmentView is the denormalized answer to "who holds this order".
type AssignmentView struct {
	ServiceType string    `json:"serviceType"`
	OrderID     string    `json:"orderId"`
	DriverID    string    `json:"driverId"`
	DriverName  string    `json:"driverName"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// AssignmentCache is a read cache over active assignments, serving the status
// view endpoint. It is strictly best-effort: the claim path never consults
// it, so staleness here can never affect who wins an order.
type AssignmentCache struct {
	mu    sync.RWMutex
	cache map[string]AssignmentView
	repo  RecordRepository
}

func NewAssignmentCache(repo RecordRepository) *AssignmentCache {
	return &AssignmentCache{
		cache: make(map[string]AssignmentView),
		repo:  repo,
	}
}

func key(serviceType, orderID string) string {
	return serviceType + "/" + orderID
}

// LoadInitialData warms the cache from the active assignment records.
func (c *AssignmentCache) LoadInitialData(ctx context.Context) error {
	records, err := c.repo.GetAllActive(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range records {
		c.cache[key(record.ServiceType, record.OrderID)] = viewFrom(record)
	}
	metrics.AssignmentCacheItems.Set(float64(len(c.cache)))
	log.Printf("Loaded %d active assignments into cache", len(c.cache))
	return nil
}

func (c *AssignmentCache) Get(serviceType, orderID string) (AssignmentView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, found := c.cache[key(serviceType, orderID)]
	return view, found
}

func (c *AssignmentCache) Set(view AssignmentView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key(view.ServiceType, view.OrderID)] = view
	metrics.AssignmentCacheItems.Set(float64(len(c.cache)))
}

// Delete drops the view for a retired (completed/cancelled) assignment.
func (c *AssignmentCache) Delete(serviceType, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key(serviceType, orderID))
	metrics.AssignmentCacheItems.Set(float64(len(c.cache)))
}

func viewFrom(record *repository.AssignmentRecord) AssignmentView {
	return AssignmentView{
		ServiceType: record.ServiceType,
		OrderID:     record.OrderID,
		DriverID:    record.DriverID,
		DriverName:  record.DriverName,
		AssignedAt:  record.CreatedAt,
	}
}
