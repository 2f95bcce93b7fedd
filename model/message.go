package model

import "time"

type MessageStatus string

const (
	MESSAGE_PENDING    MessageStatus = "pending"
	MESSAGE_PROCESSING MessageStatus = "processing"
	MESSAGE_SENT       MessageStatus = "sent"
	MESSAGE_FAILED     MessageStatus = "failed"
	MESSAGE_CANCELLED  MessageStatus = "cancelled"
)

type QueuedMessage struct {
	Id             string        `json:"id"`
	LeadId         string        `json:"leadId"`
	ConversationId string        `json:"conversationId,omitempty"`
	CampaignId     string        `json:"campaignId,omitempty"`
	SessionId      string        `json:"sessionId,omitempty"`
	Content        string        `json:"content"`
	MediaType      string        `json:"mediaType"`
	MediaUrl       string        `json:"mediaUrl,omitempty"`
	Priority       int           `json:"priority"`
	ScheduledAt    *time.Time    `json:"scheduledAt,omitempty"`
	Status         MessageStatus `json:"status"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
	FirstContact   bool          `json:"firstContact"`
	CreatedAt      time.Time     `json:"createdAt"`
	SentAt         *time.Time    `json:"sentAt,omitempty"`
}

// OutboundMessage is the payload handed to the injected send capability.
type OutboundMessage struct {
	SessionId      string `json:"sessionId"`
	To             string `json:"to"`
	Jid            string `json:"jid,omitempty"`
	Content        string `json:"content"`
	MediaType      string `json:"mediaType"`
	MediaUrl       string `json:"mediaUrl,omitempty"`
	ConversationId string `json:"conversationId,omitempty"`
}

// IncomingMessage is one inbound WhatsApp message as delivered by the
// transport collaborator.
type IncomingMessage struct {
	Id             string    `json:"id"`
	LeadId         string    `json:"leadId"`
	ConversationId string    `json:"conversationId"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

type BulkEnqueueRequest struct {
	LeadIds     []string          `json:"leadIds"`
	CampaignId  string            `json:"campaignId,omitempty"`
	Content     string            `json:"content"`
	MediaType   string            `json:"mediaType"`
	MediaUrl    string            `json:"mediaUrl,omitempty"`
	Priority    int               `json:"priority"`
	StartAt     *time.Time        `json:"startAt,omitempty"`
	DelayMinMs  int               `json:"delayMinMs,omitempty"`
	DelayMaxMs  int               `json:"delayMaxMs,omitempty"`
	Assignments map[string]string `json:"assignments,omitempty"`
}
