// Package store persists shipments, drivers, location samples, companies,
// users and documents. Every single-document write is atomic; shipment
// writes are additionally guarded by the document version.
package store

import (
	"context"
	"time"

	"waste-tracking-api-server/internal/models"
)

type ShipmentStore interface {
	// CreateShipment inserts s and sets its ID. Duplicate shipment numbers
	// fail with apperrors.ErrConflict.
	CreateShipment(ctx context.Context, s *models.Shipment) error
	// GetShipment accepts either the document ID or the shipment number.
	GetShipment(ctx context.Context, id string) (*models.Shipment, error)
	ListShipments(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, error)
	// AppendStatus sets the status and pushes entry onto the history when the
	// stored version still equals expectedVersion.
	AppendStatus(ctx context.Context, s *models.Shipment, expectedVersion int64, entry models.StatusHistoryEntry) error
	// UpdateApproval replaces the approval block under the same version guard.
	UpdateApproval(ctx context.Context, s *models.Shipment, expectedVersion int64) error
	// ListAutoApprovalDue returns shipments whose overall approval is still
	// pending and whose deadline is at or before now.
	ListAutoApprovalDue(ctx context.Context, now time.Time, limit int64) ([]models.Shipment, error)
}

type DriverStore interface {
	CreateDriver(ctx context.Context, d *models.Driver) error
	GetDriver(ctx context.Context, driverID string) (*models.Driver, error)
	ListDrivers(ctx context.Context, companyID string) ([]models.Driver, error)
	// ListDriversWithLocation returns only drivers with both coordinates set.
	ListDriversWithLocation(ctx context.Context) ([]models.Driver, error)
	UpdatePosition(ctx context.Context, driverID string, p models.PositionUpdate) error
	SetTracking(ctx context.Context, driverID string, enabled bool, at time.Time) error
	Ping(ctx context.Context, driverID string, at time.Time) error
}

type LocationStore interface {
	InsertLocation(ctx context.Context, l *models.DriverLocation) error
	// Listings are newest first.
	ListByDriver(ctx context.Context, driverID string, limit int64) ([]models.DriverLocation, error)
	ListByShipment(ctx context.Context, shipmentID string, limit int64) ([]models.DriverLocation, error)
}

type CompanyStore interface {
	CreateCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, companyID string) (*models.Company, error)
	ListCompanies(ctx context.Context, companyType string) ([]models.Company, error)
	UpdateCompany(ctx context.Context, c *models.Company) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type DocumentStore interface {
	InsertDocument(ctx context.Context, d *models.ShipmentDocument) error
	ListDocuments(ctx context.Context, shipmentID string) ([]models.ShipmentDocument, error)
}
