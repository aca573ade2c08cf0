// Package scoring maps a case's priority tier and queue type to a dispatch score.
//
// The score is additive: a tier contribution plus the queue type's base weight
// times QueueWeightMultiplier. With the shipped tables the largest queue bonus
// (+20) stays below the gap between adjacent tiers (25), so queue weight only
// reorders cases of equal urgency. Retune by editing the tables, not the formula.
package scoring

import "github.com/casedesk/case-dispatch/internal/domain"

// TierScores is the policy table for case priority tiers.
var TierScores = map[domain.CasePriority]int{
	domain.CasePriorityUrgent: 100,
	domain.CasePriorityHigh:   75,
	domain.CasePriorityNormal: 50,
	domain.CasePriorityLow:    25,
}

// QueueWeightMultiplier scales a queue type's base weight into score points.
const QueueWeightMultiplier = 10

// Score returns the dispatch score for a case priority in a queue type.
// Unknown tiers and queue types contribute zero.
func Score(priority domain.CasePriority, queueType domain.QueueType) int {
	return TierScores[priority] + queueType.BaseWeight()*QueueWeightMultiplier
}

// Scorer is the function shape consumers accept so tests can swap policies.
type Scorer func(domain.CasePriority, domain.QueueType) int
