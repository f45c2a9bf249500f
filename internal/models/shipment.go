// internal/models/shipment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ShipmentStatus string

const (
	StatusPending    ShipmentStatus = "pending"
	StatusRegistered ShipmentStatus = "registered"
	StatusInTransit  ShipmentStatus = "in_transit"
	StatusDelivery   ShipmentStatus = "delivery"
	StatusSorting    ShipmentStatus = "sorting"
	StatusCompleted  ShipmentStatus = "completed"
)

type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
)

// ApprovalParty names one of the two approval slots of a shipment.
type ApprovalParty string

const (
	PartyGenerator ApprovalParty = "generator"
	PartyRecycler  ApprovalParty = "recycler"
)

// StatusHistoryEntry is appended on every status change and never rewritten.
type StatusHistoryEntry struct {
	Status     ShipmentStatus `bson:"status" json:"status"`
	Timestamp  time.Time      `bson:"timestamp" json:"timestamp"`
	ActorID    string         `bson:"actorID" json:"actorID"`
	ActorEmail string         `bson:"actorEmail" json:"actorEmail"`
	Notes      string         `bson:"notes,omitempty" json:"notes,omitempty"`
}

type ApprovalSlot struct {
	Status          ApprovalStatus `bson:"status" json:"status"`
	ApprovedAt      *time.Time     `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	ApprovedBy      string         `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	RejectionReason string         `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
}

type Approval struct {
	Generator            ApprovalSlot   `bson:"generator" json:"generator"`
	Recycler             ApprovalSlot   `bson:"recycler" json:"recycler"`
	OverallStatus        ApprovalStatus `bson:"overallStatus" json:"overallStatus"`
	AutoApprovalDeadline time.Time      `bson:"autoApprovalDeadline" json:"autoApprovalDeadline"`
}

// Slot returns a pointer to the slot owned by party, or nil for an unknown party.
func (a *Approval) Slot(party ApprovalParty) *ApprovalSlot {
	switch party {
	case PartyGenerator:
		return &a.Generator
	case PartyRecycler:
		return &a.Recycler
	}
	return nil
}

type Shipment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShipmentNumber string             `bson:"shipmentNumber" json:"shipmentNumber"` // e.g. "SH123456001"

	GeneratorCompanyID   string `bson:"generatorCompanyID" json:"generatorCompanyID"`
	TransporterCompanyID string `bson:"transporterCompanyID" json:"transporterCompanyID"`
	RecyclerCompanyID    string `bson:"recyclerCompanyID" json:"recyclerCompanyID"`
	DriverID             string `bson:"driverID,omitempty" json:"driverID,omitempty"`
	// Unregistered drivers are recorded by hand.
	ManualDriverName   string `bson:"manualDriverName,omitempty" json:"manualDriverName,omitempty"`
	ManualVehiclePlate string `bson:"manualVehiclePlate,omitempty" json:"manualVehiclePlate,omitempty"`

	WasteTypeID   string   `bson:"wasteTypeID" json:"wasteTypeID"`
	Description   string   `bson:"description,omitempty" json:"description,omitempty"`
	Quantity      Quantity `bson:"quantity" json:"quantity"`
	PackagingType string   `bson:"packagingType,omitempty" json:"packagingType,omitempty"`

	PickupLocation   string     `bson:"pickupLocation" json:"pickupLocation"`
	DeliveryLocation string     `bson:"deliveryLocation" json:"deliveryLocation"`
	PickupDate       *time.Time `bson:"pickupDate,omitempty" json:"pickupDate,omitempty"`
	DeliveryDate     *time.Time `bson:"deliveryDate,omitempty" json:"deliveryDate,omitempty"`

	Status        ShipmentStatus       `bson:"status" json:"status"`
	StatusHistory []StatusHistoryEntry `bson:"statusHistory" json:"statusHistory"`
	Approval      Approval             `bson:"approval" json:"approval"`

	CreatedBy string    `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	// Version is bumped on every write; stores use it for compare-and-swap.
	Version int64 `bson:"version" json:"version"`
}

// CompanyIDFor returns the company that owns the given approval slot.
func (s *Shipment) CompanyIDFor(party ApprovalParty) string {
	switch party {
	case PartyGenerator:
		return s.GeneratorCompanyID
	case PartyRecycler:
		return s.RecyclerCompanyID
	}
	return ""
}

// InvolvesCompany reports whether companyID is one of the three parties.
func (s *Shipment) InvolvesCompany(companyID string) bool {
	if companyID == "" {
		return false
	}
	return s.GeneratorCompanyID == companyID ||
		s.TransporterCompanyID == companyID ||
		s.RecyclerCompanyID == companyID
}

// ShipmentFilter narrows shipment listings. Empty fields match everything.
type ShipmentFilter struct {
	Status          ShipmentStatus
	OverallApproval ApprovalStatus
	CompanyID       string
	DriverID        string
	Limit           int64
	Offset          int64
}
