package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DocumentWeighingTicket = "weighing_ticket"
	DocumentPhoto          = "photo"
	DocumentManifest       = "manifest"
	DocumentOther          = "other"
)

type ShipmentDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShipmentID string             `bson:"shipmentID" json:"shipmentID"`
	Kind       string             `bson:"kind" json:"kind"`
	Media      MediaPointer       `bson:"media" json:"media"`
	UploadedBy string             `bson:"uploadedBy" json:"uploadedBy"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
