package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"go.uber.org/zap"
)

const (
	EXECUTION_KEY      = "EXECUTIONS"
	EXECUTION_CONV_KEY = "EXECUTIONS_BY_CONV"
)

type redisExecutionDao struct {
	baseDao
}

var _ persistence.ExecutionStorage = new(redisExecutionDao)

// SaveExecution writes the full row and the conversation index in one
// pipelined round trip. Terminal rows drop out of the index so a later
// inbound message cannot rehydrate them.
func (re *redisExecutionDao) SaveExecution(execution *model.FlowExecution) error {
	key := re.getNamespaceKey(EXECUTION_KEY)
	convKey := re.getNamespaceKey(EXECUTION_CONV_KEY)
	data, err := encode(*execution)
	if err != nil {
		return err
	}
	ctx := context.Background()
	dropIndex := false
	if execution.Status != model.EXECUTION_RUNNING {
		// Only the execution that owns the index entry may drop it: a stale
		// terminal save must not evict a newer running execution.
		current, err := re.redisClient.HGet(ctx, convKey, execution.ConversationId).Result()
		dropIndex = err == nil && current == execution.Id
	}
	pipe := re.redisClient.Pipeline()
	pipe.HSet(ctx, key, execution.Id, string(data))
	if execution.Status == model.EXECUTION_RUNNING {
		pipe.HSet(ctx, convKey, execution.ConversationId, execution.Id)
	} else if dropIndex {
		pipe.HDel(ctx, convKey, execution.ConversationId)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error saving execution", zap.String("executionId", execution.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (re *redisExecutionDao) GetExecution(id string) (*model.FlowExecution, error) {
	key := re.getNamespaceKey(EXECUTION_KEY)
	ctx := context.Background()
	raw, err := re.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "execution", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.FlowExecution]([]byte(raw))
}

func (re *redisExecutionDao) FindRunningByConversation(conversationId string) (*model.FlowExecution, error) {
	convKey := re.getNamespaceKey(EXECUTION_CONV_KEY)
	ctx := context.Background()
	execId, err := re.redisClient.HGet(ctx, convKey, conversationId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	execution, err := re.GetExecution(execId)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	if execution.Status != model.EXECUTION_RUNNING {
		return nil, nil
	}
	return execution, nil
}
