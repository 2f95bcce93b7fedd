// Package persistence defines the storage contracts consumed by the flow
// engine and the dispatch queue. Implementations must write each transition
// in a single round trip so concurrent readers never observe a torn update.
package persistence

import (
	"fmt"
	"time"

	"github.com/zapflow/zapflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

type FlowStorage interface {
	SaveFlowDefinition(flow model.FlowDefinition) error
	GetFlowDefinition(id string) (*model.FlowDefinition, error)
	DeleteFlowDefinition(id string) error
	ListActiveFlows() ([]model.FlowDefinition, error)
}

type ExecutionStorage interface {
	// SaveExecution persists the full execution row and keeps the
	// conversation -> running-execution index in step with the status.
	SaveExecution(execution *model.FlowExecution) error
	GetExecution(id string) (*model.FlowExecution, error)
	FindRunningByConversation(conversationId string) (*model.FlowExecution, error)
}

type QueueStorage interface {
	InsertMessage(msg *model.QueuedMessage) error
	InsertMessages(msgs []*model.QueuedMessage) error
	// FetchNextEligible returns the pending message with the highest
	// priority among those scheduled at or before now, earliest first on
	// ties, or nil when none is due.
	FetchNextEligible(now time.Time) (*model.QueuedMessage, error)
	MarkProcessing(id string) error
	// AssignSession records the allocated sender account on the row and
	// counts it against the session's daily first-contact usage.
	AssignSession(id string, sessionId string) error
	MarkSent(id string, at time.Time) error
	MarkFailed(id string, errMsg string) error
	MarkCancelled(id string) error
	PendingCount() (int, error)
	CancelPending(campaignId string) (int, error)
	// UsedToday counts today's first-contact rows assigned to the session
	// in pending, processing or sent state.
	UsedToday(sessionId string, now time.Time) (int, error)
	// FailPendingChatMessage mirrors a dispatch failure onto the pending
	// chat-message row tied to the same lead and conversation.
	FailPendingChatMessage(leadId string, conversationId string, errMsg string) error
}

type LeadStorage interface {
	GetLead(id string) (*model.Lead, error)
	SaveLead(lead *model.Lead) error
}

type ConversationStorage interface {
	GetConversation(id string) (*model.Conversation, error)
	SaveConversation(conv *model.Conversation) error
	SetAutomationEnabled(id string, enabled bool) error
}

type EventStorage interface {
	ListCustomEvents() ([]model.CustomEvent, error)
	SaveCustomEvent(event model.CustomEvent) error
	AppendOccurrence(occ model.EventOccurrence) error
}

type AccountStorage interface {
	ListSenderAccounts() ([]model.SenderAccount, error)
	SaveSenderAccount(account model.SenderAccount) error
	GetSession(id string) (*model.WhatsAppSession, error)
	SaveSession(session model.WhatsAppSession) error
}

type SettingsStorage interface {
	GetSetting(key string, defaultValue string) (string, error)
	GetIntSetting(key string, defaultValue int) (int, error)
	SetSetting(key string, value string) error
}

// Storage aggregates every per-aggregate contract the core consumes.
type Storage interface {
	FlowStorage
	ExecutionStorage
	QueueStorage
	LeadStorage
	ConversationStorage
	EventStorage
	AccountStorage
	SettingsStorage
}

// Settings keys read by the queue's processing loop.
const (
	SETTING_QUEUE_DELAY_SECONDS    = "queue_delay_seconds"
	SETTING_QUEUE_MAX_PER_MINUTE   = "queue_max_per_minute"
	SETTING_BUSINESS_HOURS_ENABLED = "business_hours_enabled"
	SETTING_BUSINESS_HOURS_START   = "business_hours_start"
	SETTING_BUSINESS_HOURS_END     = "business_hours_end"
)
