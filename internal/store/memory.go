package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/models"
)

// MemoryStore is an in-process implementation of every store interface,
// used by tests and by the API server when no MongoDB URI is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	shipments map[primitive.ObjectID]models.Shipment
	drivers   map[string]models.Driver
	locations []models.DriverLocation
	companies map[string]models.Company
	users     map[string]models.User
	documents []models.ShipmentDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[primitive.ObjectID]models.Shipment),
		drivers:   make(map[string]models.Driver),
		companies: make(map[string]models.Company),
		users:     make(map[string]models.User),
	}
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func copyShipment(s models.Shipment) models.Shipment {
	s.StatusHistory = append([]models.StatusHistoryEntry(nil), s.StatusHistory...)
	return s
}

// --- shipments ---

func (m *MemoryStore) CreateShipment(ctx context.Context, s *models.Shipment) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shipments {
		if existing.ShipmentNumber == s.ShipmentNumber {
			return fmt.Errorf("create shipment %s: %w", s.ShipmentNumber, apperrors.ErrConflict)
		}
	}
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	m.shipments[s.ID] = copyShipment(*s)
	return nil
}

func (m *MemoryStore) findShipment(id string) (models.Shipment, bool) {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		s, ok := m.shipments[oid]
		return s, ok
	}
	for _, s := range m.shipments {
		if s.ShipmentNumber == id {
			return s, true
		}
	}
	return models.Shipment{}, false
}

func (m *MemoryStore) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.findShipment(id)
	if !ok {
		return nil, fmt.Errorf("get shipment %s: %w", id, apperrors.ErrNotFound)
	}
	out := copyShipment(s)
	return &out, nil
}

func (m *MemoryStore) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]models.Shipment, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.Shipment{}
	for _, s := range m.shipments {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.OverallApproval != "" && s.Approval.OverallStatus != f.OverallApproval {
			continue
		}
		if f.CompanyID != "" && !s.InvolvesCompany(f.CompanyID) {
			continue
		}
		if f.DriverID != "" && s.DriverID != f.DriverID {
			continue
		}
		result = append(result, copyShipment(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	start := int(f.Offset)
	if start < 0 {
		start = 0
	}
	if start > len(result) {
		return []models.Shipment{}, nil
	}
	result = result[start:]
	if f.Limit > 0 && int(f.Limit) < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

func (m *MemoryStore) casUpdate(ctx context.Context, op string, s *models.Shipment, expectedVersion int64, apply func(*models.Shipment)) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.shipments[s.ID]
	if !ok {
		return fmt.Errorf("%s %s: %w", op, s.ShipmentNumber, apperrors.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%s %s: %w", op, s.ShipmentNumber, apperrors.ErrConflict)
	}
	stored = copyShipment(stored)
	apply(&stored)
	stored.UpdatedAt = s.UpdatedAt
	stored.Version = expectedVersion + 1
	m.shipments[s.ID] = stored
	s.Version = stored.Version
	return nil
}

func (m *MemoryStore) AppendStatus(ctx context.Context, s *models.Shipment, expectedVersion int64, entry models.StatusHistoryEntry) error {
	return m.casUpdate(ctx, "append status", s, expectedVersion, func(stored *models.Shipment) {
		stored.Status = entry.Status
		stored.StatusHistory = append(stored.StatusHistory, entry)
	})
}

func (m *MemoryStore) UpdateApproval(ctx context.Context, s *models.Shipment, expectedVersion int64) error {
	return m.casUpdate(ctx, "update approval", s, expectedVersion, func(stored *models.Shipment) {
		stored.Approval = s.Approval
	})
}

func (m *MemoryStore) ListAutoApprovalDue(ctx context.Context, now time.Time, limit int64) ([]models.Shipment, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []models.Shipment
	for _, s := range m.shipments {
		if s.Approval.OverallStatus == models.ApprovalPending && !s.Approval.AutoApprovalDeadline.After(now) {
			due = append(due, copyShipment(s))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Approval.AutoApprovalDeadline.Before(due[j].Approval.AutoApprovalDeadline)
	})
	if limit > 0 && int(limit) < len(due) {
		due = due[:limit]
	}
	return due, nil
}

// --- drivers ---

func (m *MemoryStore) CreateDriver(ctx context.Context, d *models.Driver) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[d.DriverID]; ok {
		return fmt.Errorf("create driver %s: %w", d.DriverID, apperrors.ErrConflict)
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	m.drivers[d.DriverID] = *d
	return nil
}

func (m *MemoryStore) GetDriver(ctx context.Context, driverID string) (*models.Driver, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, fmt.Errorf("get driver %s: %w", driverID, apperrors.ErrNotFound)
	}
	return &d, nil
}

func (m *MemoryStore) listDrivers(keep func(models.Driver) bool) []models.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	drivers := []models.Driver{}
	for _, d := range m.drivers {
		if keep(d) {
			drivers = append(drivers, d)
		}
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].Name < drivers[j].Name })
	return drivers
}

func (m *MemoryStore) ListDrivers(ctx context.Context, companyID string) ([]models.Driver, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return m.listDrivers(func(d models.Driver) bool {
		return companyID == "" || d.CompanyID == companyID
	}), nil
}

func (m *MemoryStore) ListDriversWithLocation(ctx context.Context) ([]models.Driver, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return m.listDrivers(func(d models.Driver) bool { return d.HasLocation() }), nil
}

func (m *MemoryStore) updateDriver(ctx context.Context, op, driverID string, apply func(*models.Driver)) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return fmt.Errorf("%s %s: %w", op, driverID, apperrors.ErrNotFound)
	}
	apply(&d)
	m.drivers[driverID] = d
	return nil
}

func (m *MemoryStore) UpdatePosition(ctx context.Context, driverID string, p models.PositionUpdate) error {
	return m.updateDriver(ctx, "update position", driverID, func(d *models.Driver) {
		lat, lng, at := p.Latitude, p.Longitude, p.At
		d.CurrentLatitude = &lat
		d.CurrentLongitude = &lng
		d.CurrentSpeed = copyFloat(p.Speed)
		d.CurrentHeading = copyFloat(p.Heading)
		d.CurrentAccuracy = copyFloat(p.Accuracy)
		d.LastLocationUpdate = &at
		d.LastPing = &at
		d.IsOnline = true
		d.UpdatedAt = at
	})
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func (m *MemoryStore) SetTracking(ctx context.Context, driverID string, enabled bool, at time.Time) error {
	return m.updateDriver(ctx, "set tracking", driverID, func(d *models.Driver) {
		d.TrackingEnabled = enabled
		if !enabled {
			d.IsOnline = false
		}
		d.UpdatedAt = at
	})
}

func (m *MemoryStore) Ping(ctx context.Context, driverID string, at time.Time) error {
	return m.updateDriver(ctx, "ping", driverID, func(d *models.Driver) {
		d.LastPing = &at
	})
}

// --- driver locations ---

func (m *MemoryStore) InsertLocation(ctx context.Context, l *models.DriverLocation) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	m.locations = append(m.locations, *l)
	return nil
}

func (m *MemoryStore) listLocations(keep func(models.DriverLocation) bool, limit int64) []models.DriverLocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.DriverLocation{}
	for _, l := range m.locations {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out
}

func (m *MemoryStore) ListByDriver(ctx context.Context, driverID string, limit int64) ([]models.DriverLocation, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return m.listLocations(func(l models.DriverLocation) bool { return l.DriverID == driverID }, limit), nil
}

func (m *MemoryStore) ListByShipment(ctx context.Context, shipmentID string, limit int64) ([]models.DriverLocation, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return m.listLocations(func(l models.DriverLocation) bool { return l.ShipmentID == shipmentID }, limit), nil
}

// --- companies ---

func (m *MemoryStore) CreateCompany(ctx context.Context, c *models.Company) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[c.CompanyID]; ok {
		return fmt.Errorf("create company %s: %w", c.CompanyID, apperrors.ErrConflict)
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.companies[c.CompanyID] = *c
	return nil
}

func (m *MemoryStore) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("get company %s: %w", companyID, apperrors.ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) ListCompanies(ctx context.Context, companyType string) ([]models.Company, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Company{}
	for _, c := range m.companies {
		if companyType == "" || c.Type == companyType {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out, nil
}

func (m *MemoryStore) UpdateCompany(ctx context.Context, c *models.Company) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.companies[c.CompanyID]
	if !ok {
		return fmt.Errorf("update company %s: %w", c.CompanyID, apperrors.ErrNotFound)
	}
	c.ID = stored.ID
	c.CreatedAt = stored.CreatedAt
	m.companies[c.CompanyID] = *c
	return nil
}

// --- users ---

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return fmt.Errorf("create user %s: %w", u.Email, apperrors.ErrConflict)
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.Email] = *u
	return nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, fmt.Errorf("find user %s: %w", email, apperrors.ErrNotFound)
	}
	return &u, nil
}

// --- documents ---

func (m *MemoryStore) InsertDocument(ctx context.Context, d *models.ShipmentDocument) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	m.documents = append(m.documents, *d)
	return nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context, shipmentID string) ([]models.ShipmentDocument, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ShipmentDocument{}
	for _, d := range m.documents {
		if d.ShipmentID == shipmentID {
			out = append(out, d)
		}
	}
	return out, nil
}
