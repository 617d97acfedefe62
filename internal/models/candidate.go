package models

import "time"

// Tier is the availability classification of an employee against a slot.
// The four tiers are exhaustive and pairwise disjoint for active employees.
type Tier string

const (
	TierAvailable     Tier = "AVAILABLE"
	TierCrossPosition Tier = "CROSS_POSITION"
	TierOtherSite     Tier = "OTHER_SITE"
	TierUnavailable   Tier = "UNAVAILABLE"
)

// ReasonTag is a concrete, machine-readable cause attached to a candidate.
type ReasonTag string

const (
	ReasonAlreadyAssigned     ReasonTag = "already_assigned"
	ReasonPermanentConstraint ReasonTag = "permanent_constraint"
	ReasonRestViolation       ReasonTag = "rest_violation"
	ReasonHardConstraint      ReasonTag = "hard_constraint"
	ReasonSoftConstraint      ReasonTag = "soft_constraint"
	ReasonCrossPosition       ReasonTag = "cross_position"
	ReasonOtherSite           ReasonTag = "other_site"
	ReasonFlexiblePosition    ReasonTag = "flexible_position"
	ReasonFlexibleSite        ReasonTag = "flexible_site"
	ReasonBecameAvailable     ReasonTag = "became_available"
)

// Blocking reports whether the tag blocks assignment without an explicit
// override confirmation. Soft constraints are advisory but still gated.
func (t ReasonTag) Blocking() bool {
	switch t {
	case ReasonAlreadyAssigned, ReasonPermanentConstraint, ReasonRestViolation, ReasonHardConstraint, ReasonSoftConstraint:
		return true
	}
	return false
}

// RestConflictType tells whether a rest violation is against the prior or
// the following shift.
type RestConflictType string

const (
	RestConflictBefore RestConflictType = "before"
	RestConflictAfter  RestConflictType = "after"
)

// RestDetails carries the evidence for a rest_violation classification.
type RestDetails struct {
	Type              RestConflictType `json:"type"`
	AdjacentShiftName string           `json:"adjacent_shift_name"`
	GapHours          float64          `json:"gap_hours"`
	RequiredHours     float64          `json:"required_hours"`
}

// ConstraintDetails carries the evidence for a permanent_constraint
// classification.
type ConstraintDetails struct {
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
}

// CandidateRecord is one employee classified against one slot.
type CandidateRecord struct {
	Employee          Employee           `json:"employee"`
	Tier              Tier               `json:"tier"`
	Reasons           []ReasonTag        `json:"reasons,omitempty"`
	Warnings          []ReasonTag        `json:"warnings,omitempty"`
	Score             int                `json:"score"`
	UnavailableReason *ReasonTag         `json:"unavailable_reason,omitempty"`
	ConflictShiftName string             `json:"conflict_shift_name,omitempty"`
	ConstraintDetails *ConstraintDetails `json:"constraint_details,omitempty"`
	RestDetails       *RestDetails       `json:"rest_details,omitempty"`
	BecameAvailable   bool               `json:"became_available,omitempty"`
}

// AssignmentKind is the closed set of badge variants a rendering layer may
// dispatch on.
type AssignmentKind string

const (
	KindAvailable     AssignmentKind = "AVAILABLE"
	KindCrossPosition AssignmentKind = "CROSS_POSITION"
	KindCrossSite     AssignmentKind = "CROSS_SITE"
	KindFlexible      AssignmentKind = "FLEXIBLE"
	KindSpare         AssignmentKind = "SPARE"
)

// KindFor maps pending-change flags to the badge variant.
func KindFor(flags ChangeFlags, hasCustomTimes bool) AssignmentKind {
	switch {
	case hasCustomTimes:
		return KindSpare
	case flags.CrossPosition:
		return KindCrossPosition
	case flags.CrossSite:
		return KindCrossSite
	case flags.Flexible:
		return KindFlexible
	}
	return KindAvailable
}
