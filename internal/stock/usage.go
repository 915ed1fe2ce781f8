package stock

import "time"

// Usage history actions recorded alongside unit mutations.
const (
	UsageActionCreated     = "created"
	UsageActionRelocated   = "relocated"
	UsageActionReceived    = "received"
	UsageActionWrittenOff  = "written_off"
	UsageActionTransferred = "transferred"
)

// UsageEntry is one usage-history row. Entries are written in the same
// transaction as the unit mutation they describe, so location and history
// never diverge.
type UsageEntry struct {
	UnitID      int64
	Action      string
	ActorID     int64
	WarehouseID int64
	TransferID  int64
	Note        string
	At          time.Time
}
