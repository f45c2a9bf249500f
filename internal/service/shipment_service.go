// Package service runs the shipment lifecycle and the driver location
// pipeline against the stores, and fans each successful write out to
// metrics, Kafka and the change feed.
package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
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
)

// maxWriteAttempts bounds the re-read and re-validate loop on version conflicts.
const maxWriteAttempts = 3

// DocumentStorage stores uploaded files and returns their URL.
type DocumentStorage interface {
	Upload(ctx context.Context, objectKey, contentType string, body io.Reader) (string, error)
}

type ShipmentDeps struct {
	Shipments      store.ShipmentStore
	Documents      store.DocumentStore
	Storage        DocumentStorage
	Publisher      events.Publisher
	Notifier       realtime.Notifier
	Now            shipment.Clock
	Policy         shipment.TransitionPolicy
	ApprovalWindow time.Duration
	SweepBatchSize int64
	// DocumentKey builds the storage key of an uploaded document.
	DocumentKey func(shipmentID, kind, fileName string) string
}

type ShipmentService struct {
	deps ShipmentDeps
}

func NewShipmentService(deps ShipmentDeps) *ShipmentService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Policy == "" {
		deps.Policy = shipment.PolicyStrict
	}
	if deps.ApprovalWindow <= 0 {
		deps.ApprovalWindow = 48 * time.Hour
	}
	if deps.SweepBatchSize <= 0 {
		deps.SweepBatchSize = 200
	}
	if deps.DocumentKey == nil {
		deps.DocumentKey = func(shipmentID, kind, fileName string) string {
			return fmt.Sprintf("shipments/%s/%s/%s-%s", shipmentID, kind, uuid.NewString(), fileName)
		}
	}
	return &ShipmentService{deps: deps}
}

func (s *ShipmentService) now() time.Time {
	return s.deps.Now().UTC()
}

// NewShipmentNumber returns "SH", the last six digits of the unix time and a
// three-digit random suffix, e.g. SH123456001.
func NewShipmentNumber(now time.Time) string {
	id := uuid.New()
	suffix := binary.BigEndian.Uint16(id[:2]) % 1000
	return fmt.Sprintf("SH%06d%03d", now.Unix()%1000000, suffix)
}

func canCreate(s *models.Shipment, actor models.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleGenerator:
		return actor.CompanyID != "" && actor.CompanyID == s.GeneratorCompanyID
	case models.RoleTransporter:
		return actor.CompanyID != "" && actor.CompanyID == s.TransporterCompanyID
	case models.RoleDriver:
		return actor.DriverID != ""
	}
	return false
}

func validateNew(s *models.Shipment) error {
	var missing []string
	for name, v := range map[string]string{
		"generatorCompanyID":   s.GeneratorCompanyID,
		"transporterCompanyID": s.TransporterCompanyID,
		"recyclerCompanyID":    s.RecyclerCompanyID,
		"wasteTypeID":          s.WasteTypeID,
		"pickupLocation":       s.PickupLocation,
		"deliveryLocation":     s.DeliveryLocation,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", apperrors.ErrValidation, strings.Join(missing, ", "))
	}
	if s.Quantity.Value < 0 {
		return fmt.Errorf("%w: quantity must not be negative", apperrors.ErrValidation)
	}
	return nil
}

// Create registers a new shipment. Drafts start as pending, everything else
// as registered. The approval deadline starts counting at creation.
func (s *ShipmentService) Create(ctx context.Context, sh *models.Shipment, draft bool, actor models.Actor) error {
	if actor.Role == models.RoleDriver && sh.DriverID == "" {
		sh.DriverID = actor.DriverID
	}
	if !canCreate(sh, actor) {
		return fmt.Errorf("%w: role %q cannot create this shipment", apperrors.ErrUnauthorized, actor.Role)
	}
	if err := validateNew(sh); err != nil {
		return err
	}

	now := s.now()
	sh.Status = models.StatusRegistered
	if draft {
		sh.Status = models.StatusPending
	}
	sh.StatusHistory = []models.StatusHistoryEntry{{
		Status:     sh.Status,
		Timestamp:  now,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Notes:      "created",
	}}
	sh.Approval = shipment.NewApproval(now, s.deps.ApprovalWindow)
	sh.CreatedBy = actor.UserID
	sh.CreatedAt = now
	sh.UpdatedAt = now
	sh.Version = 0

	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		sh.ShipmentNumber = NewShipmentNumber(now)
		if err = s.deps.Shipments.CreateShipment(ctx, sh); !errors.Is(err, apperrors.ErrConflict) {
			break
		}
	}
	if err != nil {
		return err
	}

	logger.Info("shipment created", "shipment", sh.ShipmentNumber, "status", sh.Status, "actor", actor.Email)
	s.publish(ctx, sh, events.LifecycleEvent{Type: events.TypeShipmentCreated, Status: string(sh.Status), ActorID: actor.UserID})
	s.notify(ctx, models.ChangeInsert, sh)
	return nil
}

// visible reports whether the actor may read the shipment.
func visible(sh *models.Shipment, actor models.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDriver:
		return actor.DriverID != "" && actor.DriverID == sh.DriverID
	}
	return sh.InvolvesCompany(actor.CompanyID)
}

// Get loads a shipment by ID or number and applies any due auto-approval.
// Shipments the actor may not see are reported as not found.
func (s *ShipmentService) Get(ctx context.Context, id string, actor models.Actor) (*models.Shipment, error) {
	sh, err := s.deps.Shipments.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(sh, actor) {
		return nil, fmt.Errorf("shipment %s: %w", id, apperrors.ErrNotFound)
	}
	s.resolveOnRead(ctx, sh)
	return sh, nil
}

// List scopes non-admin callers to their own company or, for drivers, their
// own shipments.
func (s *ShipmentService) List(ctx context.Context, filter models.ShipmentFilter, actor models.Actor) ([]models.Shipment, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDriver:
		filter.CompanyID = ""
		filter.DriverID = actor.DriverID
	default:
		filter.CompanyID = actor.CompanyID
	}
	if actor.Role != models.RoleAdmin && filter.CompanyID == "" && filter.DriverID == "" {
		return []models.Shipment{}, nil
	}

	list, err := s.deps.Shipments.ListShipments(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.resolveOnRead(ctx, &list[i])
	}
	return list, nil
}

// resolveOnRead applies the deadline to sh and persists the result when it
// changed. A failed write is logged; the sweep will retry.
func (s *ShipmentService) resolveOnRead(ctx context.Context, sh *models.Shipment) {
	now := s.now()
	if !shipment.ResolveDeadline(&sh.Approval, now) {
		return
	}
	expected := sh.Version
	sh.UpdatedAt = now
	if err := s.deps.Shipments.UpdateApproval(ctx, sh, expected); err != nil {
		logger.Warn("could not persist auto-approval", "shipment", sh.ShipmentNumber, "err", err)
		return
	}
	s.autoApproved(ctx, sh)
}

func (s *ShipmentService) autoApproved(ctx context.Context, sh *models.Shipment) {
	metrics.AutoApprovals.Inc()
	logger.Info("shipment auto-approved", "shipment", sh.ShipmentNumber, "overall", sh.Approval.OverallStatus)
	s.publish(ctx, sh, events.LifecycleEvent{Type: events.TypeAutoApproved, Outcome: string(sh.Approval.OverallStatus), ActorID: shipment.SystemActor})
	s.notify(ctx, models.ChangeUpdate, sh)
}

func (s *ShipmentService) rejected(op string, err error) error {
	metrics.RejectedOperations.WithLabelValues(op, apperrors.Code(err)).Inc()
	return err
}

// Advance moves a shipment to the given status label and appends a history
// entry. On a version conflict the shipment is re-read and re-validated.
func (s *ShipmentService) Advance(ctx context.Context, id, status, notes string, actor models.Actor) (*models.Shipment, error) {
	to, err := shipment.ParseStatus(status)
	if err != nil {
		return nil, s.rejected("status", err)
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		sh, err := s.deps.Shipments.GetShipment(ctx, id)
		if err != nil {
			return nil, s.rejected("status", err)
		}
		if !visible(sh, actor) {
			return nil, s.rejected("status", fmt.Errorf("shipment %s: %w", id, apperrors.ErrNotFound))
		}
		expected := sh.Version
		if err := shipment.Advance(sh, to, notes, actor, s.deps.Policy, s.now()); err != nil {
			return nil, s.rejected("status", err)
		}
		entry := sh.StatusHistory[len(sh.StatusHistory)-1]
		err = s.deps.Shipments.AppendStatus(ctx, sh, expected, entry)
		if errors.Is(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, s.rejected("status", err)
		}

		metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
		logger.Info("shipment status changed", "shipment", sh.ShipmentNumber, "status", to, "actor", actor.Email)
		s.publish(ctx, sh, events.LifecycleEvent{Type: events.TypeStatusChanged, Status: string(to), ActorID: actor.UserID})
		s.notify(ctx, models.ChangeUpdate, sh)
		return sh, nil
	}
	return nil, s.rejected("status", fmt.Errorf("advance %s: %w", id, apperrors.ErrConflict))
}

// Decide records an approve or reject decision for one party. Any due
// auto-approval is applied first, so a decision after the deadline fails.
func (s *ShipmentService) Decide(ctx context.Context, id, party string, approve bool, reason string, actor models.Actor) (*models.Shipment, error) {
	p, err := shipment.ParseParty(party)
	if err != nil {
		return nil, s.rejected("approval", err)
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		sh, err := s.deps.Shipments.GetShipment(ctx, id)
		if err != nil {
			return nil, s.rejected("approval", err)
		}
		expected := sh.Version
		now := s.now()
		auto := shipment.ResolveDeadline(&sh.Approval, now)

		if err := shipment.Decide(sh, p, approve, reason, actor, now); err != nil {
			if auto {
				sh.UpdatedAt = now
				if werr := s.deps.Shipments.UpdateApproval(ctx, sh, expected); werr == nil {
					s.autoApproved(ctx, sh)
				}
			}
			return nil, s.rejected("approval", err)
		}

		err = s.deps.Shipments.UpdateApproval(ctx, sh, expected)
		if errors.Is(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, s.rejected("approval", err)
		}

		outcome := "approved"
		if !approve {
			outcome = "rejected"
		}
		metrics.ApprovalDecisions.WithLabelValues(string(p), outcome).Inc()
		logger.Info("approval decided", "shipment", sh.ShipmentNumber, "party", p, "outcome", outcome, "overall", sh.Approval.OverallStatus)
		if auto {
			metrics.AutoApprovals.Inc()
		}
		s.publish(ctx, sh, events.LifecycleEvent{Type: events.TypeApprovalDecided, Party: string(p), Outcome: outcome, ActorID: actor.UserID})
		s.notify(ctx, models.ChangeUpdate, sh)
		return sh, nil
	}
	return nil, s.rejected("approval", fmt.Errorf("decide %s: %w", id, apperrors.ErrConflict))
}

// SweepAutoApprovals resolves every shipment whose deadline has passed and
// returns how many were updated. Conflicting rows are left for the next run.
func (s *ShipmentService) SweepAutoApprovals(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	due, err := s.deps.Shipments.ListAutoApprovalDue(ctx, now, s.deps.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range due {
		sh := &due[i]
		expected := sh.Version
		if !shipment.ResolveDeadline(&sh.Approval, now) {
			continue
		}
		sh.UpdatedAt = now
		if err := s.deps.Shipments.UpdateApproval(ctx, sh, expected); err != nil {
			if !errors.Is(err, apperrors.ErrConflict) {
				logger.Warn("auto-approval write failed", "shipment", sh.ShipmentNumber, "err", err)
			}
			continue
		}
		s.autoApproved(ctx, sh)
		updated++
	}
	return updated, nil
}

func (s *ShipmentService) History(ctx context.Context, id string, actor models.Actor) ([]models.StatusHistoryEntry, error) {
	sh, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if sh.StatusHistory == nil {
		return []models.StatusHistoryEntry{}, nil
	}
	return sh.StatusHistory, nil
}

// AttachDocument uploads a file and records it against the shipment.
func (s *ShipmentService) AttachDocument(ctx context.Context, id, kind, fileName, contentType string, body io.Reader, actor models.Actor) (*models.ShipmentDocument, error) {
	switch kind {
	case models.DocumentWeighingTicket, models.DocumentPhoto, models.DocumentManifest, models.DocumentOther:
	case "":
		kind = models.DocumentOther
	default:
		return nil, fmt.Errorf("%w: unknown document kind %q", apperrors.ErrValidation, kind)
	}
	if s.deps.Storage == nil || s.deps.Documents == nil {
		return nil, fmt.Errorf("%w: document storage is not configured", apperrors.ErrPersistence)
	}
	sh, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	shipmentID := sh.ID.Hex()
	key := s.deps.DocumentKey(shipmentID, kind, fileName)
	url, err := s.deps.Storage.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	doc := &models.ShipmentDocument{
		ShipmentID: shipmentID,
		Kind:       kind,
		Media: models.MediaPointer{
			ID:       uuid.NewString(),
			URL:      url,
			Key:      key,
			FileName: fileName,
			FileType: contentType,
		},
		UploadedBy: actor.UserID,
		CreatedAt:  s.now(),
	}
	if err := s.deps.Documents.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *ShipmentService) Documents(ctx context.Context, id string, actor models.Actor) ([]models.ShipmentDocument, error) {
	if s.deps.Documents == nil {
		return []models.ShipmentDocument{}, nil
	}
	sh, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.deps.Documents.ListDocuments(ctx, sh.ID.Hex())
}

func (s *ShipmentService) publish(ctx context.Context, sh *models.Shipment, ev events.LifecycleEvent) {
	ev.ID = uuid.NewString()
	ev.ShipmentID = sh.ID.Hex()
	ev.ShipmentNumber = sh.ShipmentNumber
	ev.DriverID = sh.DriverID
	ev.OccurredAt = s.now()
	if err := s.deps.Publisher.Publish(ctx, sh.ShipmentNumber, ev); err != nil {
		logger.Warn("lifecycle event not published", "type", ev.Type, "shipment", sh.ShipmentNumber, "err", err)
	}
}

func (s *ShipmentService) notify(ctx context.Context, changeType string, sh *models.Shipment) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(ctx, models.TableShipments, changeType, sh.ID.Hex())
	}
}
