package model

import "time"

type CustomEvent struct {
	Id   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type EventOccurrence struct {
	EventId        string    `json:"eventId"`
	FlowId         string    `json:"flowId"`
	NodeId         string    `json:"nodeId"`
	LeadId         string    `json:"leadId"`
	ConversationId string    `json:"conversationId"`
	ExecutionId    string    `json:"executionId"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Lifecycle notification names emitted by the engine and the queue.
const (
	EVENT_FLOW_STARTED    = "flow:started"
	EVENT_FLOW_ENDED      = "flow:ended"
	EVENT_FLOW_TRANSFER   = "flow:transfer"
	EVENT_FLOW_WEBHOOK    = "flow:webhook"
	EVENT_MESSAGE_QUEUED  = "message:queued"
	EVENT_MESSAGE_SENT    = "message:sent"
	EVENT_MESSAGE_FAILED  = "message:failed"
	EVENT_BULK_QUEUED     = "bulk:queued"
	EVENT_QUEUE_CLEARED   = "queue:cleared"
)
