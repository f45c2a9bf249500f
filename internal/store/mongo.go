package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/models"
)

const (
	ShipmentsCollection       = "shipments"
	DriversCollection         = "drivers"
	DriverLocationsCollection = "driver_locations"
	CompaniesCollection       = "companies"
	UsersCollection           = "users"
	DocumentsCollection       = "shipment_documents"
)

// MongoStore implements every store interface on one database.
type MongoStore struct {
	DB *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{DB: db}
}

func wrap(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrPersistence, err)
}

func shipmentKey(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"shipmentNumber": id}
}

// --- shipments ---

func (m *MongoStore) CreateShipment(ctx context.Context, s *models.Shipment) error {
	result, err := m.DB.Collection(ShipmentsCollection).InsertOne(ctx, s)
	if err != nil {
		return wrap("create shipment", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid
	}
	return nil
}

func (m *MongoStore) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	var s models.Shipment
	if err := m.DB.Collection(ShipmentsCollection).FindOne(ctx, shipmentKey(id)).Decode(&s); err != nil {
		return nil, wrap("get shipment", err)
	}
	return &s, nil
}

func (m *MongoStore) ListShipments(ctx context.Context, f models.ShipmentFilter) ([]models.Shipment, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.OverallApproval != "" {
		filter["approval.overallStatus"] = f.OverallApproval
	}
	if f.CompanyID != "" {
		filter["$or"] = bson.A{
			bson.M{"generatorCompanyID": f.CompanyID},
			bson.M{"transporterCompanyID": f.CompanyID},
			bson.M{"recyclerCompanyID": f.CompanyID},
		}
	}
	if f.DriverID != "" {
		filter["driverID"] = f.DriverID
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}

	cursor, err := m.DB.Collection(ShipmentsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap("list shipments", err)
	}
	defer cursor.Close(ctx)

	var shipments []models.Shipment
	if err := cursor.All(ctx, &shipments); err != nil {
		return nil, wrap("decode shipments", err)
	}
	if shipments == nil {
		shipments = []models.Shipment{}
	}
	return shipments, nil
}

// casUpdate applies update to the shipment only if its version matches.
func (m *MongoStore) casUpdate(ctx context.Context, op string, s *models.Shipment, expectedVersion int64, update bson.M) error {
	filter := bson.M{"_id": s.ID, "version": expectedVersion}
	result, err := m.DB.Collection(ShipmentsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrap(op, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", op, s.ShipmentNumber, apperrors.ErrConflict)
	}
	s.Version = expectedVersion + 1
	return nil
}

func (m *MongoStore) AppendStatus(ctx context.Context, s *models.Shipment, expectedVersion int64, entry models.StatusHistoryEntry) error {
	return m.casUpdate(ctx, "append status", s, expectedVersion, bson.M{
		"$set":  bson.M{"status": entry.Status, "updatedAt": s.UpdatedAt},
		"$push": bson.M{"statusHistory": entry},
		"$inc":  bson.M{"version": 1},
	})
}

func (m *MongoStore) UpdateApproval(ctx context.Context, s *models.Shipment, expectedVersion int64) error {
	return m.casUpdate(ctx, "update approval", s, expectedVersion, bson.M{
		"$set": bson.M{"approval": s.Approval, "updatedAt": s.UpdatedAt},
		"$inc": bson.M{"version": 1},
	})
}

func (m *MongoStore) ListAutoApprovalDue(ctx context.Context, now time.Time, limit int64) ([]models.Shipment, error) {
	filter := bson.M{
		"approval.overallStatus":        models.ApprovalPending,
		"approval.autoApprovalDeadline": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "approval.autoApprovalDeadline", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.DB.Collection(ShipmentsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap("list auto-approval due", err)
	}
	defer cursor.Close(ctx)

	var shipments []models.Shipment
	if err := cursor.All(ctx, &shipments); err != nil {
		return nil, wrap("decode shipments", err)
	}
	return shipments, nil
}

// --- drivers ---

func (m *MongoStore) CreateDriver(ctx context.Context, d *models.Driver) error {
	result, err := m.DB.Collection(DriversCollection).InsertOne(ctx, d)
	if err != nil {
		return wrap("create driver", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		d.ID = oid
	}
	return nil
}

func (m *MongoStore) GetDriver(ctx context.Context, driverID string) (*models.Driver, error) {
	var d models.Driver
	if err := m.DB.Collection(DriversCollection).FindOne(ctx, bson.M{"driverID": driverID}).Decode(&d); err != nil {
		return nil, wrap("get driver", err)
	}
	return &d, nil
}

func (m *MongoStore) findDrivers(ctx context.Context, op string, filter bson.M) ([]models.Driver, error) {
	cursor, err := m.DB.Collection(DriversCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, wrap(op, err)
	}
	defer cursor.Close(ctx)

	var drivers []models.Driver
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, wrap(op, err)
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	return drivers, nil
}

func (m *MongoStore) ListDrivers(ctx context.Context, companyID string) ([]models.Driver, error) {
	filter := bson.M{}
	if companyID != "" {
		filter["companyID"] = companyID
	}
	return m.findDrivers(ctx, "list drivers", filter)
}

func (m *MongoStore) ListDriversWithLocation(ctx context.Context) ([]models.Driver, error) {
	return m.findDrivers(ctx, "list drivers with location", bson.M{
		"currentLatitude":  bson.M{"$ne": nil},
		"currentLongitude": bson.M{"$ne": nil},
	})
}

func (m *MongoStore) updateDriver(ctx context.Context, op, driverID string, set bson.M) error {
	result, err := m.DB.Collection(DriversCollection).UpdateOne(ctx, bson.M{"driverID": driverID}, bson.M{"$set": set})
	if err != nil {
		return wrap(op, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", op, driverID, apperrors.ErrNotFound)
	}
	return nil
}

func (m *MongoStore) UpdatePosition(ctx context.Context, driverID string, p models.PositionUpdate) error {
	return m.updateDriver(ctx, "update position", driverID, bson.M{
		"currentLatitude":    p.Latitude,
		"currentLongitude":   p.Longitude,
		"currentSpeed":       p.Speed,
		"currentHeading":     p.Heading,
		"currentAccuracy":    p.Accuracy,
		"lastLocationUpdate": p.At,
		"lastPing":           p.At,
		"isOnline":           true,
		"updatedAt":          p.At,
	})
}

func (m *MongoStore) SetTracking(ctx context.Context, driverID string, enabled bool, at time.Time) error {
	set := bson.M{"trackingEnabled": enabled, "updatedAt": at}
	if !enabled {
		set["isOnline"] = false
	}
	return m.updateDriver(ctx, "set tracking", driverID, set)
}

func (m *MongoStore) Ping(ctx context.Context, driverID string, at time.Time) error {
	return m.updateDriver(ctx, "ping", driverID, bson.M{"lastPing": at})
}

// --- driver locations ---

func (m *MongoStore) InsertLocation(ctx context.Context, l *models.DriverLocation) error {
	result, err := m.DB.Collection(DriverLocationsCollection).InsertOne(ctx, l)
	if err != nil {
		return wrap("insert location", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		l.ID = oid
	}
	return nil
}

func (m *MongoStore) findLocations(ctx context.Context, filter bson.M, limit int64) ([]models.DriverLocation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.DB.Collection(DriverLocationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap("list locations", err)
	}
	defer cursor.Close(ctx)

	var locations []models.DriverLocation
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, wrap("decode locations", err)
	}
	if locations == nil {
		locations = []models.DriverLocation{}
	}
	return locations, nil
}

func (m *MongoStore) ListByDriver(ctx context.Context, driverID string, limit int64) ([]models.DriverLocation, error) {
	return m.findLocations(ctx, bson.M{"driverID": driverID}, limit)
}

func (m *MongoStore) ListByShipment(ctx context.Context, shipmentID string, limit int64) ([]models.DriverLocation, error) {
	return m.findLocations(ctx, bson.M{"shipmentID": shipmentID}, limit)
}

// --- companies ---

func (m *MongoStore) CreateCompany(ctx context.Context, c *models.Company) error {
	result, err := m.DB.Collection(CompaniesCollection).InsertOne(ctx, c)
	if err != nil {
		return wrap("create company", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid
	}
	return nil
}

func (m *MongoStore) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	var c models.Company
	if err := m.DB.Collection(CompaniesCollection).FindOne(ctx, bson.M{"companyID": companyID}).Decode(&c); err != nil {
		return nil, wrap("get company", err)
	}
	return &c, nil
}

func (m *MongoStore) ListCompanies(ctx context.Context, companyType string) ([]models.Company, error) {
	filter := bson.M{}
	if companyType != "" {
		filter["type"] = companyType
	}
	cursor, err := m.DB.Collection(CompaniesCollection).Find(ctx, filter)
	if err != nil {
		return nil, wrap("list companies", err)
	}
	defer cursor.Close(ctx)

	var companies []models.Company
	if err := cursor.All(ctx, &companies); err != nil {
		return nil, wrap("decode companies", err)
	}
	if companies == nil {
		companies = []models.Company{}
	}
	return companies, nil
}

func (m *MongoStore) UpdateCompany(ctx context.Context, c *models.Company) error {
	result, err := m.DB.Collection(CompaniesCollection).UpdateOne(ctx, bson.M{"companyID": c.CompanyID}, bson.M{"$set": bson.M{
		"name":         c.Name,
		"type":         c.Type,
		"address":      c.Address,
		"contactEmail": c.ContactEmail,
		"contactPhone": c.ContactPhone,
		"status":       c.Status,
		"updatedAt":    c.UpdatedAt,
	}})
	if err != nil {
		return wrap("update company", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update company %s: %w", c.CompanyID, apperrors.ErrNotFound)
	}
	return nil
}

// --- users ---

func (m *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	result, err := m.DB.Collection(UsersCollection).InsertOne(ctx, u)
	if err != nil {
		return wrap("create user", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (m *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := m.DB.Collection(UsersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, wrap("find user", err)
	}
	return &u, nil
}

// --- documents ---

func (m *MongoStore) InsertDocument(ctx context.Context, d *models.ShipmentDocument) error {
	result, err := m.DB.Collection(DocumentsCollection).InsertOne(ctx, d)
	if err != nil {
		return wrap("insert document", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		d.ID = oid
	}
	return nil
}

func (m *MongoStore) ListDocuments(ctx context.Context, shipmentID string) ([]models.ShipmentDocument, error) {
	cursor, err := m.DB.Collection(DocumentsCollection).Find(ctx, bson.M{"shipmentID": shipmentID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, wrap("list documents", err)
	}
	defer cursor.Close(ctx)

	var docs []models.ShipmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("decode documents", err)
	}
	if docs == nil {
		docs = []models.ShipmentDocument{}
	}
	return docs, nil
}
