// internal/models/driver.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Driver carries a denormalized copy of the driver's latest position.
// IsOnline is only a hint; presence is derived from LastLocationUpdate.
type Driver struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverID     string             `bson:"driverID" json:"driverID"`
	Name         string             `bson:"name" json:"name"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CompanyID    string             `bson:"companyID,omitempty" json:"companyID,omitempty"`
	VehiclePlate string             `bson:"vehiclePlate,omitempty" json:"vehiclePlate,omitempty"`

	CurrentLatitude    *float64   `bson:"currentLatitude,omitempty" json:"currentLatitude,omitempty"`
	CurrentLongitude   *float64   `bson:"currentLongitude,omitempty" json:"currentLongitude,omitempty"`
	CurrentSpeed       *float64   `bson:"currentSpeed,omitempty" json:"currentSpeed,omitempty"`
	CurrentHeading     *float64   `bson:"currentHeading,omitempty" json:"currentHeading,omitempty"`
	CurrentAccuracy    *float64   `bson:"currentAccuracy,omitempty" json:"currentAccuracy,omitempty"`
	LastLocationUpdate *time.Time `bson:"lastLocationUpdate,omitempty" json:"lastLocationUpdate,omitempty"`
	LastPing           *time.Time `bson:"lastPing,omitempty" json:"lastPing,omitempty"`
	IsOnline           bool       `bson:"isOnline" json:"isOnline"`
	TrackingEnabled    bool       `bson:"trackingEnabled" json:"trackingEnabled"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasLocation reports whether both current coordinates are known.
func (d *Driver) HasLocation() bool {
	return d.CurrentLatitude != nil && d.CurrentLongitude != nil
}

// PositionUpdate is written to the driver's current-position fields.
// Speed, Heading and Accuracy replace the stored values, so a nil clears them.
type PositionUpdate struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Accuracy  *float64
	At        time.Time
}
