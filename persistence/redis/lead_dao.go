package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
)

const (
	LEAD_KEY         = "LEADS"
	CONVERSATION_KEY = "CONVERSATIONS"
)

type redisLeadDao struct {
	baseDao
}

var _ persistence.LeadStorage = new(redisLeadDao)
var _ persistence.ConversationStorage = new(redisLeadDao)

func (rl *redisLeadDao) GetLead(id string) (*model.Lead, error) {
	raw, err := rl.redisClient.HGet(context.Background(), rl.getNamespaceKey(LEAD_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "lead", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.Lead]([]byte(raw))
}

func (rl *redisLeadDao) SaveLead(lead *model.Lead) error {
	data, err := encode(*lead)
	if err != nil {
		return err
	}
	if err := rl.redisClient.HSet(context.Background(), rl.getNamespaceKey(LEAD_KEY), lead.Id, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rl *redisLeadDao) GetConversation(id string) (*model.Conversation, error) {
	raw, err := rl.redisClient.HGet(context.Background(), rl.getNamespaceKey(CONVERSATION_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "conversation", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.Conversation]([]byte(raw))
}

func (rl *redisLeadDao) SaveConversation(conv *model.Conversation) error {
	data, err := encode(*conv)
	if err != nil {
		return err
	}
	if err := rl.redisClient.HSet(context.Background(), rl.getNamespaceKey(CONVERSATION_KEY), conv.Id, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rl *redisLeadDao) SetAutomationEnabled(id string, enabled bool) error {
	conv, err := rl.GetConversation(id)
	if err != nil {
		return err
	}
	conv.AutomationEnabled = enabled
	return rl.SaveConversation(conv)
}
