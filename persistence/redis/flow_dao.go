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

const FLOW_KEY = "FLOWS"

type redisFlowDao struct {
	baseDao
}

var _ persistence.FlowStorage = new(redisFlowDao)

func (rf *redisFlowDao) SaveFlowDefinition(flow model.FlowDefinition) error {
	key := rf.getNamespaceKey(FLOW_KEY)
	data, err := encode(flow)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := rf.redisClient.HSet(ctx, key, flow.Id, string(data)).Err(); err != nil {
		logger.Error("error saving flow definition", zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowDao) GetFlowDefinition(id string) (*model.FlowDefinition, error) {
	key := rf.getNamespaceKey(FLOW_KEY)
	ctx := context.Background()
	raw, err := rf.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "flow", Id: id}
		}
		logger.Error("error getting flow definition", zap.String("flowId", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.FlowDefinition]([]byte(raw))
}

func (rf *redisFlowDao) DeleteFlowDefinition(id string) error {
	key := rf.getNamespaceKey(FLOW_KEY)
	ctx := context.Background()
	if err := rf.redisClient.HDel(ctx, key, id).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowDao) ListActiveFlows() ([]model.FlowDefinition, error) {
	key := rf.getNamespaceKey(FLOW_KEY)
	ctx := context.Background()
	raw, err := rf.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flows := make([]model.FlowDefinition, 0, len(raw))
	for _, value := range raw {
		flow, err := decode[model.FlowDefinition]([]byte(value))
		if err != nil {
			logger.Warn("skipping undecodable flow definition", zap.Error(err))
			continue
		}
		if flow.Active {
			flows = append(flows, *flow)
		}
	}
	return flows, nil
}
