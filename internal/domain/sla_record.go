package domain

import "time"

// SlaStatus enumerates SLA standing for a case.
type SlaStatus string

const (
	SlaWithin            SlaStatus = "WITHIN_SLA"
	SlaApproachingBreach SlaStatus = "APPROACHING_BREACH"
	SlaBreached          SlaStatus = "BREACHED"
)

// Default SLA targets in minutes.
const (
	DefaultFirstResponseTargetMinutes = 24 * 60
	DefaultResolutionTargetMinutes    = 48 * 60
)

// SlaRecord tracks one case against its first-response and resolution targets.
// OpenedAt is the case creation time and anchors every elapsed-time computation.
type SlaRecord struct {
	ID                         string
	CaseID                     string
	OpenedAt                   time.Time
	FirstResponseAt            *time.Time
	ResolutionAt               *time.Time
	FirstResponseMinutes       *int64
	ResolutionMinutes          *int64
	FirstResponseTargetMinutes int
	ResolutionTargetMinutes    int
	FirstResponseMet           *bool
	ResolutionMet              *bool
	Status                     SlaStatus
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Clone returns a deep copy safe to mutate independently.
func (r *SlaRecord) Clone() *SlaRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.FirstResponseAt = cloneTime(r.FirstResponseAt)
	out.ResolutionAt = cloneTime(r.ResolutionAt)
	out.FirstResponseMinutes = cloneInt64(r.FirstResponseMinutes)
	out.ResolutionMinutes = cloneInt64(r.ResolutionMinutes)
	out.FirstResponseMet = cloneBool(r.FirstResponseMet)
	out.ResolutionMet = cloneBool(r.ResolutionMet)
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	b := *v
	return &b
}
