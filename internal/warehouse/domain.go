package warehouse

import "errors"

// Warehouse models one physical location holding stock units.
type Warehouse struct {
	ID                           int64
	Name                         string
	ExternalLocationID           int64
	ExternalConsumablesStorageID int64
	ExternalSalesStorageID       int64
	IsDistributionCenter         bool
	IsActive                     bool
	Timezone                     string
}

// RemoteEligible reports whether the warehouse may take part in remote
// operations: both external ids must be set and positive.
func (w Warehouse) RemoteEligible() bool {
	return w.ExternalLocationID > 0 && w.ExternalConsumablesStorageID > 0
}

// ErrNotFound indicates an unknown warehouse id.
var ErrNotFound = errors.New("warehouse: not found")
