package domain

// CaseDraft is the inbound shape accepted at intake, before classification.
// QueueType and Priority are optional overrides; when empty the classifier decides.
type CaseDraft struct {
	CustomerEmail  string
	CustomerName   string
	Subject        string
	Body           string
	PrioritySignal string
	QueueType      QueueType
	Priority       CasePriority
}
