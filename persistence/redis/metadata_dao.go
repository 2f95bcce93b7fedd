package redis

import (
	"context"
	"errors"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
)

const (
	ACCOUNT_KEY      = "ACCOUNTS"
	SESSION_KEY      = "SESSIONS"
	CUSTOM_EVENT_KEY = "CUSTOM_EVENTS"
	EVENT_LOG_KEY    = "EVENT_LOG"
	SETTINGS_KEY     = "SETTINGS"
)

type redisMetadataDao struct {
	baseDao
}

var _ persistence.AccountStorage = new(redisMetadataDao)
var _ persistence.EventStorage = new(redisMetadataDao)
var _ persistence.SettingsStorage = new(redisMetadataDao)

func (rm *redisMetadataDao) ListSenderAccounts() ([]model.SenderAccount, error) {
	raw, err := rm.redisClient.HGetAll(context.Background(), rm.getNamespaceKey(ACCOUNT_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	accounts := make([]model.SenderAccount, 0, len(raw))
	for _, value := range raw {
		account, err := decode[model.SenderAccount]([]byte(value))
		if err != nil {
			continue
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (rm *redisMetadataDao) SaveSenderAccount(account model.SenderAccount) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	if err := rm.redisClient.HSet(context.Background(), rm.getNamespaceKey(ACCOUNT_KEY), account.SessionId, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataDao) GetSession(id string) (*model.WhatsAppSession, error) {
	raw, err := rm.redisClient.HGet(context.Background(), rm.getNamespaceKey(SESSION_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "session", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.WhatsAppSession]([]byte(raw))
}

func (rm *redisMetadataDao) SaveSession(session model.WhatsAppSession) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	if err := rm.redisClient.HSet(context.Background(), rm.getNamespaceKey(SESSION_KEY), session.Id, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataDao) ListCustomEvents() ([]model.CustomEvent, error) {
	raw, err := rm.redisClient.HGetAll(context.Background(), rm.getNamespaceKey(CUSTOM_EVENT_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	events := make([]model.CustomEvent, 0, len(raw))
	for _, value := range raw {
		event, err := decode[model.CustomEvent]([]byte(value))
		if err != nil {
			continue
		}
		events = append(events, *event)
	}
	return events, nil
}

func (rm *redisMetadataDao) SaveCustomEvent(event model.CustomEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := rm.redisClient.HSet(context.Background(), rm.getNamespaceKey(CUSTOM_EVENT_KEY), event.Id, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataDao) AppendOccurrence(occ model.EventOccurrence) error {
	data, err := encode(occ)
	if err != nil {
		return err
	}
	if err := rm.redisClient.RPush(context.Background(), rm.getNamespaceKey(EVENT_LOG_KEY), string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataDao) GetSetting(key string, defaultValue string) (string, error) {
	raw, err := rm.redisClient.HGet(context.Background(), rm.getNamespaceKey(SETTINGS_KEY), key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return defaultValue, nil
		}
		return defaultValue, persistence.StorageLayerError{Message: err.Error()}
	}
	return raw, nil
}

func (rm *redisMetadataDao) GetIntSetting(key string, defaultValue int) (int, error) {
	raw, err := rm.GetSetting(key, strconv.Itoa(defaultValue))
	if err != nil {
		return defaultValue, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

func (rm *redisMetadataDao) SetSetting(key string, value string) error {
	if err := rm.redisClient.HSet(context.Background(), rm.getNamespaceKey(SETTINGS_KEY), key, value).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
