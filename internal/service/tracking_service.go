package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/events"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/metrics"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/realtime"
	"waste-tracking-api-server/internal/shipment"
	"waste-tracking-api-server/internal/store"
	"waste-tracking-api-server/internal/tracking"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

type TrackingDeps struct {
	Drivers   store.DriverStore
	Locations store.LocationStore
	Shipments store.ShipmentStore
	Publisher events.Publisher
	Notifier  realtime.Notifier
	Now       shipment.Clock
	Presence  tracking.PresencePolicy
}

type TrackingService struct {
	deps TrackingDeps
}

func NewTrackingService(deps TrackingDeps) *TrackingService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Presence.OnlineWindow <= 0 || deps.Presence.OfflineAfter <= 0 {
		deps.Presence = tracking.DefaultPresencePolicy()
	}
	return &TrackingService{deps: deps}
}

// LocationInput is one sample or route point reported for a driver.
type LocationInput struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	ShipmentID   string   `json:"shipmentID,omitempty"`
	LocationType string   `json:"locationType,omitempty"`
	Address      string   `json:"address,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	// RecordedAt defaults to the server time when zero.
	RecordedAt time.Time `json:"recordedAt,omitempty"`
}

// DriverPosition is a driver with a visible location and its derived presence.
type DriverPosition struct {
	models.Driver
	Presence tracking.Presence `json:"presence"`
}

// CanReport reports whether the actor may write locations or tracking flags
// for driverID.
func CanReport(actor models.Actor, driverID string) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleDriver && actor.DriverID != "" && actor.DriverID == driverID
}

func (t *TrackingService) authorize(actor models.Actor, driverID string) error {
	if !CanReport(actor, driverID) {
		return fmt.Errorf("%w: cannot report for driver %s", apperrors.ErrUnauthorized, driverID)
	}
	return nil
}

func validateLocation(in LocationInput) error {
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", apperrors.ErrValidation, in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", apperrors.ErrValidation, in.Longitude)
	}
	if in.Heading != nil && (*in.Heading < 0 || *in.Heading > 360) {
		return fmt.Errorf("%w: heading %v out of range", apperrors.ErrValidation, *in.Heading)
	}
	if !models.ValidLocationType(in.LocationType) {
		return fmt.Errorf("%w: unknown location type %q", apperrors.ErrValidation, in.LocationType)
	}
	return nil
}

// newLocation validates the input and normalizes the shipment reference to
// the shipment's document ID.
func (t *TrackingService) newLocation(ctx context.Context, driverID string, in LocationInput) (*models.DriverLocation, error) {
	if err := validateLocation(in); err != nil {
		return nil, err
	}
	shipmentID := in.ShipmentID
	if shipmentID != "" && t.deps.Shipments != nil {
		sh, err := t.deps.Shipments.GetShipment(ctx, shipmentID)
		if err != nil {
			return nil, err
		}
		shipmentID = sh.ID.Hex()
	}
	recordedAt := in.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = t.deps.Now()
	}
	return &models.DriverLocation{
		DriverID:     driverID,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Speed:        in.Speed,
		Heading:      in.Heading,
		Accuracy:     in.Accuracy,
		ShipmentID:   shipmentID,
		LocationType: in.LocationType,
		Address:      in.Address,
		Notes:        in.Notes,
		RecordedAt:   recordedAt.UTC(),
	}, nil
}

// RecordLocation appends a history row and moves the driver's current
// position. The history row is written first; if the position update then
// fails the sample is still kept.
func (t *TrackingService) RecordLocation(ctx context.Context, driverID string, in LocationInput, actor models.Actor) (*models.DriverLocation, error) {
	if err := t.authorize(actor, driverID); err != nil {
		return nil, err
	}
	if _, err := t.deps.Drivers.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}
	loc, err := t.newLocation(ctx, driverID, in)
	if err != nil {
		return nil, err
	}
	if err := t.deps.Locations.InsertLocation(ctx, loc); err != nil {
		return nil, err
	}
	metrics.LocationSamples.Inc()

	err = t.deps.Drivers.UpdatePosition(ctx, driverID, models.PositionUpdate{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Speed:     loc.Speed,
		Heading:   loc.Heading,
		Accuracy:  loc.Accuracy,
		At:        t.deps.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	t.notify(ctx, driverID)
	return loc, nil
}

// AddRoutePoint appends a typed point to the driver's route without touching
// the current position.
func (t *TrackingService) AddRoutePoint(ctx context.Context, driverID string, in LocationInput, actor models.Actor) (*models.DriverLocation, error) {
	if err := t.authorize(actor, driverID); err != nil {
		return nil, err
	}
	if in.LocationType == "" {
		in.LocationType = models.LocationTypeWaypoint
	}
	loc, err := t.newLocation(ctx, driverID, in)
	if err != nil {
		return nil, err
	}
	if err := t.deps.Locations.InsertLocation(ctx, loc); err != nil {
		return nil, err
	}
	metrics.LocationSamples.Inc()
	return loc, nil
}

// SetTracking flips the tracking flag. Disabling also marks the driver offline.
func (t *TrackingService) SetTracking(ctx context.Context, driverID string, enabled bool, actor models.Actor) error {
	if err := t.authorize(actor, driverID); err != nil {
		return err
	}
	now := t.deps.Now().UTC()
	if err := t.deps.Drivers.SetTracking(ctx, driverID, enabled, now); err != nil {
		return err
	}

	evType := events.TypeTrackingStopped
	if enabled {
		evType = events.TypeTrackingStarted
	}
	logger.Info("driver tracking changed", "driver", driverID, "enabled", enabled)
	ev := events.LifecycleEvent{ID: uuid.NewString(), Type: evType, DriverID: driverID, ActorID: actor.UserID, OccurredAt: now}
	if err := t.deps.Publisher.Publish(ctx, driverID, ev); err != nil {
		logger.Warn("lifecycle event not published", "type", evType, "driver", driverID, "err", err)
	}
	t.notify(ctx, driverID)
	return nil
}

func (t *TrackingService) Ping(ctx context.Context, driverID string, actor models.Actor) error {
	if err := t.authorize(actor, driverID); err != nil {
		return err
	}
	return t.deps.Drivers.Ping(ctx, driverID, t.deps.Now().UTC())
}

// VisiblePositions lists drivers that have both coordinates, each with its
// presence derived at the current time.
func (t *TrackingService) VisiblePositions(ctx context.Context) ([]DriverPosition, error) {
	drivers, err := t.deps.Drivers.ListDriversWithLocation(ctx)
	if err != nil {
		return nil, err
	}
	now := t.deps.Now()
	out := make([]DriverPosition, 0, len(drivers))
	for _, d := range drivers {
		if !d.HasLocation() {
			continue
		}
		out = append(out, DriverPosition{
			Driver:   d,
			Presence: t.deps.Presence.Classify(d.LastLocationUpdate, d.IsOnline, now),
		})
	}
	return out, nil
}

// ClampLimit applies the default and maximum listing sizes.
func ClampLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (t *TrackingService) History(ctx context.Context, driverID string, limit int64) ([]models.DriverLocation, error) {
	return t.deps.Locations.ListByDriver(ctx, driverID, ClampLimit(limit))
}

// Route returns the samples tagged with the shipment, newest first.
func (t *TrackingService) Route(ctx context.Context, shipmentID string, limit int64) ([]models.DriverLocation, error) {
	if t.deps.Shipments != nil {
		sh, err := t.deps.Shipments.GetShipment(ctx, shipmentID)
		if err != nil {
			return nil, err
		}
		shipmentID = sh.ID.Hex()
	}
	return t.deps.Locations.ListByShipment(ctx, shipmentID, ClampLimit(limit))
}

func (t *TrackingService) notify(ctx context.Context, driverID string) {
	if t.deps.Notifier != nil {
		t.deps.Notifier.Notify(ctx, models.TableDrivers, models.ChangeUpdate, driverID)
	}
}
