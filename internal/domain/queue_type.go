package domain

import "sort"

// QueueType is a skill/category tag partitioning work.
type QueueType string

const (
	QueueTypeGeneralInquiry QueueType = "GENERAL_INQUIRY"
	QueueTypeBillingSupport QueueType = "BILLING_SUPPORT"
)

// QueueTypeInfo describes a queue type's display name and base priority weight.
type QueueTypeInfo struct {
	DisplayName string
	BaseWeight  int
}

var queueTypes = map[QueueType]QueueTypeInfo{
	QueueTypeGeneralInquiry: {DisplayName: "General Inquiry", BaseWeight: 1},
	QueueTypeBillingSupport: {DisplayName: "Billing Support", BaseWeight: 2},
}

// Valid reports whether q is a known queue type.
func (q QueueType) Valid() bool {
	_, ok := queueTypes[q]
	return ok
}

// BaseWeight returns the queue type's weight, zero for unknown types.
func (q QueueType) BaseWeight() int {
	return queueTypes[q].BaseWeight
}

func (q QueueType) DisplayName() string {
	if info, ok := queueTypes[q]; ok {
		return info.DisplayName
	}
	return string(q)
}

// QueueTypes lists every known queue type in a stable order.
func QueueTypes() []QueueType {
	out := make([]QueueType, 0, len(queueTypes))
	for q := range queueTypes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
