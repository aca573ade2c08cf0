// Package sla tracks cases against their first-response and resolution targets.
//
// The functions in this file are pure: SLA status is derived from timestamps and
// targets alone, so it can be recomputed at any time and persisted without
// coordinating with other writers.
package sla

import (
	"time"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// Approaching-breach threshold as a fraction of the target, kept as a ratio so
// the comparison stays in integer minutes.
const (
	approachNumerator   = 8
	approachDenominator = 10
)

// MinutesBetween returns whole minutes from a to b, truncated toward zero.
func MinutesBetween(a, b time.Time) int64 {
	return int64(b.Sub(a) / time.Minute)
}

// ComputeStatus derives the SLA standing of a case at now.
// Resolved cases are always within SLA. Unresponded cases are measured against
// the first-response target, responded ones against the resolution target; in
// both cases elapsed time runs from case creation.
func ComputeStatus(createdAt time.Time, firstResponseAt, resolutionAt *time.Time, now time.Time, firstTargetMin, resTargetMin int) domain.SlaStatus {
	if resolutionAt != nil {
		return domain.SlaWithin
	}
	elapsed := MinutesBetween(createdAt, now)
	if firstResponseAt == nil {
		return classify(elapsed, firstTargetMin)
	}
	return classify(elapsed, resTargetMin)
}

// Status is ComputeStatus applied to a record.
func Status(r *domain.SlaRecord, now time.Time) domain.SlaStatus {
	return ComputeStatus(r.OpenedAt, r.FirstResponseAt, r.ResolutionAt, now, r.FirstResponseTargetMinutes, r.ResolutionTargetMinutes)
}

func classify(elapsed int64, target int) domain.SlaStatus {
	t := int64(target)
	switch {
	case elapsed >= t:
		return domain.SlaBreached
	case elapsed*approachDenominator >= t*approachNumerator:
		return domain.SlaApproachingBreach
	default:
		return domain.SlaWithin
	}
}

// MarkFirstResponse records the first response once. It reports whether the
// record changed; later calls are no-ops.
func MarkFirstResponse(r *domain.SlaRecord, at time.Time) bool {
	if r.FirstResponseAt != nil {
		return false
	}
	minutes := MinutesBetween(r.OpenedAt, at)
	met := minutes <= int64(r.FirstResponseTargetMinutes)
	r.FirstResponseAt = &at
	r.FirstResponseMinutes = &minutes
	r.FirstResponseMet = &met
	return true
}

// MarkResolution records the resolution once. It reports whether the record changed.
func MarkResolution(r *domain.SlaRecord, at time.Time) bool {
	if r.ResolutionAt != nil {
		return false
	}
	minutes := MinutesBetween(r.OpenedAt, at)
	met := minutes <= int64(r.ResolutionTargetMinutes)
	r.ResolutionAt = &at
	r.ResolutionMinutes = &minutes
	r.ResolutionMet = &met
	return true
}
