package remote

import (
	"encoding/json"
	"time"
)

// Document type ids understood by the remote inventory system.
const (
	DocumentTypeArrival   = 1
	DocumentTypeDeparture = 2
)

// Good is one stock-keeping entry reported by the remote system.
type Good struct {
	ID      int64           `json:"good_id"`
	Barcode string          `json:"barcode"`
	Name    string          `json:"good_name"`
	Amounts []StorageAmount `json:"storage_amounts"`
}

// StorageAmount is the quantity the remote system records for one storage.
// Amount stays a json.Number because the remote side is not consistent about
// numeric encoding; AmountFor normalises it.
type StorageAmount struct {
	StorageID int64       `json:"storage_id"`
	Amount    json.Number `json:"amount"`
}

// AmountFor returns the quantity recorded against storageID, treating absent,
// negative or non-numeric amounts as zero.
func (g Good) AmountFor(storageID int64) int {
	for _, sa := range g.Amounts {
		if sa.StorageID != storageID {
			continue
		}
		f, err := sa.Amount.Float64()
		if err != nil || f <= 0 {
			return 0
		}
		return int(f)
	}
	return 0
}

// DocumentInput describes an arrival or departure header to create remotely.
type DocumentInput struct {
	TypeID     int       `json:"type_id" validate:"oneof=1 2"`
	Comment    string    `json:"comment"`
	StorageID  int64     `json:"storage_id" validate:"gt=0"`
	CreateDate time.Time `json:"-" validate:"required"`
	Timezone   string    `json:"-"`
}

// Document is the created remote document header.
type Document struct {
	ID int64 `json:"document_id"`
}

// OperationInput is one per-good quantity/cost line posted against a document.
type OperationInput struct {
	GoodID      int64   `json:"good_id" validate:"gt=0"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	CostPerUnit float64 `json:"cost_per_unit" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	UnitType    string  `json:"unit_type" validate:"required"`
	MasterID    int64   `json:"master_id,omitempty"`
}

type documentPayload struct {
	TypeID     int    `json:"type_id"`
	Comment    string `json:"comment"`
	StorageID  int64  `json:"storage_id"`
	CreateDate string `json:"create_date"`
	Timezone   string `json:"timezone"`
}

type documentEnvelope struct {
	Response *Document `json:"response"`
}

type operationEnvelope struct {
	Response bool `json:"response"`
}

type goodsEnvelope struct {
	Response []Good `json:"response"`
}
