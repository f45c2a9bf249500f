// internal/models/driver_location.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	LocationTypePickup     = "pickup"
	LocationTypeDelivery   = "delivery"
	LocationTypeWaypoint   = "waypoint"
	LocationTypeStop       = "stop"
	LocationTypeCheckpoint = "checkpoint"
)

// DriverLocation is one append-only GPS sample. Rows are never mutated.
type DriverLocation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverID     string             `bson:"driverID" json:"driverID"`
	Latitude     float64            `bson:"latitude" json:"latitude"`
	Longitude    float64            `bson:"longitude" json:"longitude"`
	Speed        *float64           `bson:"speed,omitempty" json:"speed,omitempty"`       // m/s
	Heading      *float64           `bson:"heading,omitempty" json:"heading,omitempty"`   // 0-360 degrees
	Accuracy     *float64           `bson:"accuracy,omitempty" json:"accuracy,omitempty"` // meters
	ShipmentID   string             `bson:"shipmentID,omitempty" json:"shipmentID,omitempty"`
	LocationType string             `bson:"locationType,omitempty" json:"locationType,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
	RecordedAt   time.Time          `bson:"recordedAt" json:"recordedAt"`
}

// ValidLocationType reports whether t is empty or one of the known tags.
func ValidLocationType(t string) bool {
	switch t {
	case "", LocationTypePickup, LocationTypeDelivery, LocationTypeWaypoint, LocationTypeStop, LocationTypeCheckpoint:
		return true
	}
	return false
}
