package model

import "time"

type ExecutionStatus string

const (
	EXECUTION_RUNNING   ExecutionStatus = "running"
	EXECUTION_COMPLETED ExecutionStatus = "completed"
	EXECUTION_FAILED    ExecutionStatus = "failed"
	EXECUTION_PAUSED    ExecutionStatus = "paused"
	EXECUTION_CANCELLED ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	return s != EXECUTION_RUNNING
}

type FlowExecution struct {
	Id             string          `json:"id"`
	Uuid           string          `json:"uuid"`
	FlowId         string          `json:"flowId"`
	ConversationId string          `json:"conversationId"`
	LeadId         string          `json:"leadId"`
	CurrentNodeId  string          `json:"currentNodeId"`
	Variables      map[string]any  `json:"variables"`
	Status         ExecutionStatus `json:"status"`
	StartedAt      time.Time       `json:"startedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
}
