package models

import "time"

const (
	TableShipments = "shipments"
	TableDrivers   = "drivers"

	ChangeInsert = "insert"
	ChangeUpdate = "update"
)

// ChangeEvent notifies subscribers that a row changed. The payload is kept
// minimal on purpose: consumers refetch the record.
type ChangeEvent struct {
	ID         string    `json:"id"`
	Table      string    `json:"table"`
	Type       string    `json:"type"`
	RecordID   string    `json:"recordID"`
	OccurredAt time.Time `json:"occurredAt"`
}
