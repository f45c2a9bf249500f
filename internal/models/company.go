// internal/models/company.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CompanyTypeGenerator   = "generator"
	CompanyTypeTransporter = "transporter"
	CompanyTypeRecycler    = "recycler"
)

type Company struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CompanyID    string             `bson:"companyID" json:"companyID"` // user-friendly unique ID, e.g. "gen-riyadh-01"
	Name         string             `bson:"name" json:"name"`
	Type         string             `bson:"type" json:"type"` // generator, transporter, recycler
	Address      Address            `bson:"address" json:"address"`
	ContactEmail string             `bson:"contactEmail,omitempty" json:"contactEmail,omitempty"`
	ContactPhone string             `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`
	Status       string             `bson:"status" json:"status"` // ACTIVE, INACTIVE
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
