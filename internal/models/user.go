package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RoleAdmin       = "admin"
	RoleGenerator   = "generator"
	RoleTransporter = "transporter"
	RoleRecycler    = "recycler"
	RoleDriver      = "driver"
)

// User struct matches the document in MongoDB
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Name      string             `bson:"name" json:"name"`
	Password  string             `bson:"password" json:"-"`
	Role      string             `bson:"role" json:"role"`
	CompanyID string             `bson:"companyID,omitempty" json:"companyID,omitempty"`
	DriverID  string             `bson:"driverID,omitempty" json:"driverID,omitempty"`
	Status    string             `bson:"status" json:"status"`
}

// Actor identifies the caller of a write operation.
type Actor struct {
	UserID    string
	Email     string
	Role      string
	CompanyID string
	DriverID  string
}
