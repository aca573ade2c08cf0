// Package classify decides the queue type and priority tier of inbound cases.
// The shipped rule is a keyword match; callers may plug in any Classifier.
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/casedesk/case-dispatch/internal/domain"
)

// MaxDescriptionRunes bounds the description stored on a case.
const MaxDescriptionRunes = 500

// Classifier assigns routing attributes to a draft.
type Classifier interface {
	QueueType(d *domain.CaseDraft) domain.QueueType
	Priority(d *domain.CaseDraft) domain.CasePriority
}

// KeywordClassifier routes drafts mentioning any billing keyword to billing
// support and everything else to general inquiry.
type KeywordClassifier struct {
	billing []string
}

// NewKeywordClassifier builds a classifier over lower-cased keywords.
func NewKeywordClassifier(billingKeywords []string) *KeywordClassifier {
	kw := make([]string, 0, len(billingKeywords))
	for _, k := range billingKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &KeywordClassifier{billing: kw}
}

// QueueType honours an explicit valid override, then falls back to the keyword rule.
func (k *KeywordClassifier) QueueType(d *domain.CaseDraft) domain.QueueType {
	if d.QueueType.Valid() {
		return d.QueueType
	}
	text := strings.ToLower(d.Subject + "\n" + d.Body)
	for _, kw := range k.billing {
		if strings.Contains(text, kw) {
			return domain.QueueTypeBillingSupport
		}
	}
	return domain.QueueTypeGeneralInquiry
}

// Priority maps the inbound signal to a tier; anything unrecognised is Normal.
func (k *KeywordClassifier) Priority(d *domain.CaseDraft) domain.CasePriority {
	if d.Priority.Valid() {
		return d.Priority
	}
	switch strings.ToUpper(strings.TrimSpace(d.PrioritySignal)) {
	case "URGENT":
		return domain.CasePriorityUrgent
	case "HIGH":
		return domain.CasePriorityHigh
	case "LOW":
		return domain.CasePriorityLow
	default:
		return domain.CasePriorityNormal
	}
}

// Description trims body text to MaxDescriptionRunes, marking truncation.
func Description(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= MaxDescriptionRunes {
		return body
	}
	return string([]rune(body)[:MaxDescriptionRunes]) + "..."
}
