package dto

import "github.com/casedesk/case-dispatch/internal/domain"

// QueueDepthResponse answers a depth query.
type QueueDepthResponse struct {
	QueueType domain.QueueType `json:"queue_type"`
	Depth     int              `json:"depth"`
}

// RedistributeResponse lists how many entries were re-ranked per queue type.
type RedistributeResponse struct {
	Changed map[domain.QueueType]int `json:"changed"`
}
