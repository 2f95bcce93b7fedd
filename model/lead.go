package model

import "time"

type Lead struct {
	Id             string     `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Jid            string     `json:"jid,omitempty"`
	Vehicle        string     `json:"vehicle,omitempty"`
	Plate          string     `json:"plate,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Status         int        `json:"status"`
	Blocked        bool       `json:"blocked"`
	FirstContactAt *time.Time `json:"firstContactAt,omitempty"`
}

func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type Conversation struct {
	Id                string `json:"id"`
	LeadId            string `json:"leadId"`
	AutomationEnabled bool   `json:"automationEnabled"`
}
