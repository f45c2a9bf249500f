package shipment

import (
	"fmt"
	"strings"
	"time"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/models"
)

// Clock returns the current time. Tests pass fixed clocks.
type Clock func() time.Time

// SystemActor is recorded as approver for deadline auto-approvals.
const SystemActor = "system"

func ParseParty(s string) (models.ApprovalParty, error) {
	switch models.ApprovalParty(s) {
	case models.PartyGenerator:
		return models.PartyGenerator, nil
	case models.PartyRecycler:
		return models.PartyRecycler, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidApprovalType, s)
}

// NewApproval returns both slots pending with the deadline window after createdAt.
func NewApproval(createdAt time.Time, window time.Duration) models.Approval {
	return models.Approval{
		Generator:            models.ApprovalSlot{Status: models.ApprovalPending},
		Recycler:             models.ApprovalSlot{Status: models.ApprovalPending},
		OverallStatus:        models.ApprovalPending,
		AutoApprovalDeadline: createdAt.Add(window),
	}
}

func resolved(st models.ApprovalStatus) bool {
	return st == models.ApprovalApproved || st == models.ApprovalAutoApproved
}

// Overall derives the shipment-level approval from the two slots. The result
// does not depend on the order in which the slots were decided.
func Overall(generator, recycler models.ApprovalStatus) models.ApprovalStatus {
	if generator == models.ApprovalRejected || recycler == models.ApprovalRejected {
		return models.ApprovalRejected
	}
	if resolved(generator) && resolved(recycler) {
		return models.ApprovalApproved
	}
	return models.ApprovalPending
}

// IsFinal reports whether no further approval transitions can happen.
func IsFinal(a models.Approval) bool {
	return a.OverallStatus == models.ApprovalApproved || a.OverallStatus == models.ApprovalRejected
}

// ResolveDeadline auto-approves pending slots once the deadline has passed,
// unless the approval is already final. It reports whether anything changed.
func ResolveDeadline(a *models.Approval, now time.Time) bool {
	if IsFinal(*a) || a.AutoApprovalDeadline.IsZero() || now.Before(a.AutoApprovalDeadline) {
		return false
	}
	changed := false
	for _, slot := range []*models.ApprovalSlot{&a.Generator, &a.Recycler} {
		if slot.Status != models.ApprovalPending {
			continue
		}
		at := now
		slot.Status = models.ApprovalAutoApproved
		slot.ApprovedAt = &at
		slot.ApprovedBy = SystemActor
		changed = true
	}
	a.OverallStatus = Overall(a.Generator.Status, a.Recycler.Status)
	return changed
}

// Decide records one party's decision. The caller's company must own the
// slot, the slot must still be pending and a rejection needs a reason.
func Decide(s *models.Shipment, party models.ApprovalParty, approve bool, reason string, actor models.Actor, now time.Time) error {
	slot := s.Approval.Slot(party)
	if slot == nil {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidApprovalType, party)
	}
	owner := s.CompanyIDFor(party)
	if actor.CompanyID == "" || actor.CompanyID != owner {
		return fmt.Errorf("%w: company %q is not the %s of this shipment", apperrors.ErrUnauthorized, actor.CompanyID, party)
	}
	if slot.Status != models.ApprovalPending {
		return fmt.Errorf("%w: %s slot is %s", apperrors.ErrAlreadyDecided, party, slot.Status)
	}
	if IsFinal(s.Approval) {
		return fmt.Errorf("%w: overall status is %s", apperrors.ErrApprovalClosed, s.Approval.OverallStatus)
	}
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return apperrors.ErrMissingReason
	}

	at := now
	slot.ApprovedAt = &at
	slot.ApprovedBy = actor.UserID
	if approve {
		slot.Status = models.ApprovalApproved
		slot.RejectionReason = ""
	} else {
		slot.Status = models.ApprovalRejected
		slot.RejectionReason = reason
	}
	s.Approval.OverallStatus = Overall(s.Approval.Generator.Status, s.Approval.Recycler.Status)
	s.UpdatedAt = now
	return nil
}
