package model

import "time"

type AllocationStrategy string

const (
	STRATEGY_SINGLE               AllocationStrategy = "single"
	STRATEGY_ROUND_ROBIN          AllocationStrategy = "round_robin"
	STRATEGY_WEIGHTED_ROUND_ROBIN AllocationStrategy = "weighted_round_robin"
	STRATEGY_RANDOM               AllocationStrategy = "random"
)

type SenderAccount struct {
	SessionId       string     `json:"sessionId"`
	Weight          int        `json:"weight"`
	DailyLimit      int        `json:"dailyLimit"`
	Active          bool       `json:"active"`
	CampaignEnabled bool       `json:"campaignEnabled"`
	CooldownUntil   *time.Time `json:"cooldownUntil,omitempty"`
}

type WhatsAppSession struct {
	Id        string `json:"id"`
	Jid       string `json:"jid,omitempty"`
	Connected bool   `json:"connected"`
}

// SenderAccountState is the transient view of an account computed per
// allocation call. Usage is derived from today's queue rows, never stored.
type SenderAccountState struct {
	SessionId       string
	Weight          int
	DailyLimit      int
	Used            int
	Connected       bool
	CampaignEnabled bool
	CooldownUntil   *time.Time
}

// Remaining returns the account's remaining daily capacity. A non-positive
// configured limit means unlimited.
func (s SenderAccountState) Remaining() int {
	if s.DailyLimit <= 0 {
		return int(^uint(0) >> 1)
	}
	r := s.DailyLimit - s.Used
	if r < 0 {
		return 0
	}
	return r
}

func (s SenderAccountState) CoolingDown(now time.Time) bool {
	return s.CooldownUntil != nil && now.Before(*s.CooldownUntil)
}
