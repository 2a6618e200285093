package repository

// Service type partition names. Each service type keeps its orders in its own
// table, a layout inherited from the platform's per-service handlers.
const (
	ServicePackages = "packages"
	ServiceFood     = "food"
	ServiceShopping = "shopping"
	ServicePharmacy = "pharmacy"
)

// Partition maps a service type to its physical table and the ordered list of
// key columns an incoming order reference may match. The columns are tried in
// order and the first matching row wins; only "id" (always first) is used for
// the locked re-read inside the claim transaction. The non-id columns are the
// single historical alias each partition actually used.
type Partition struct {
	Table         string
	CandidateKeys []string
}

var partitions = map[string]Partition{
	ServicePackages: {Table: "package_orders", CandidateKeys: []string{"id", "tracking_code"}},
	ServiceFood:     {Table: "food_orders", CandidateKeys: []string{"id", "order_ref"}},
	ServiceShopping: {Table: "shopping_orders", CandidateKeys: []string{"id", "cart_ref"}},
	ServicePharmacy: {Table: "pharmacy_orders", CandidateKeys: []string{"id", "prescription_ref"}},
}

// PartitionFor resolves the partition for a service type.
func PartitionFor(serviceType string) (Partition, bool) {
	p, ok := partitions[serviceType]
	return p, ok
}

// KnownServiceType reports whether the service type is part of the platform
// enumeration.
func KnownServiceType(serviceType string) bool {
	_, ok := partitions[serviceType]
	return ok
}
