// Package shipment holds the shipment lifecycle rules: the forward-only
// status pipeline and the two-party approval workflow. Functions here
// mutate in-memory documents only; persistence is the caller's job.
package shipment

import (
	"fmt"
	"time"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/models"
)

// Sequence is the pipeline order. Pending precedes registration.
var Sequence = []models.ShipmentStatus{
	models.StatusPending,
	models.StatusRegistered,
	models.StatusInTransit,
	models.StatusDelivery,
	models.StatusSorting,
	models.StatusCompleted,
}

type TransitionPolicy string

const (
	// PolicyStrict only allows the immediate next status.
	PolicyStrict TransitionPolicy = "strict"
	// PolicyPermissive allows any known status at any time.
	PolicyPermissive TransitionPolicy = "permissive"
)

func ParsePolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(s) {
	case PolicyStrict, "":
		return PolicyStrict, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	}
	return "", fmt.Errorf("unknown transition policy %q", s)
}

func ParseStatus(s string) (models.ShipmentStatus, error) {
	for _, st := range Sequence {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, s)
}

func position(st models.ShipmentStatus) int {
	for i, s := range Sequence {
		if s == st {
			return i
		}
	}
	return -1
}

// Next returns the status following st and false when st is terminal or unknown.
func Next(st models.ShipmentStatus) (models.ShipmentStatus, bool) {
	i := position(st)
	if i < 0 || i == len(Sequence)-1 {
		return "", false
	}
	return Sequence[i+1], true
}

// CheckTransition validates moving from one status to another under policy.
func CheckTransition(policy TransitionPolicy, from, to models.ShipmentStatus) error {
	if position(to) < 0 {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidStatus, to)
	}
	if policy == PolicyPermissive {
		return nil
	}
	next, ok := Next(from)
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, from, to)
	}
	return nil
}

// CanUpdateStatus reports whether the actor may set the status of s.
// Transporters and recyclers are limited to shipments of their own company.
func CanUpdateStatus(s *models.Shipment, actor models.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTransporter:
		return actor.CompanyID != "" && actor.CompanyID == s.TransporterCompanyID
	case models.RoleRecycler:
		return actor.CompanyID != "" && actor.CompanyID == s.RecyclerCompanyID
	}
	return false
}

// Advance sets the shipment status and appends a history entry.
// Existing history entries are never touched.
func Advance(s *models.Shipment, to models.ShipmentStatus, notes string, actor models.Actor, policy TransitionPolicy, now time.Time) error {
	if !CanUpdateStatus(s, actor) {
		return fmt.Errorf("%w: role %q cannot update status", apperrors.ErrUnauthorized, actor.Role)
	}
	if err := CheckTransition(policy, s.Status, to); err != nil {
		return err
	}

	s.Status = to
	s.StatusHistory = append(s.StatusHistory, models.StatusHistoryEntry{
		Status:     to,
		Timestamp:  now,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Notes:      notes,
	})
	s.UpdatedAt = now
	return nil
}
