package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"go.uber.org/zap"
)

const (
	QUEUE_MSG_KEY       = "QUEUE_MSGS"
	QUEUE_SCHEDULED_KEY = "QUEUE_SCHEDULED"
	USAGE_KEY           = "USAGE"

	fetchBatchSize = 32
)

type redisQueueDao struct {
	baseDao
}

var _ persistence.QueueStorage = new(redisQueueDao)

func (rq *redisQueueDao) InsertMessage(msg *model.QueuedMessage) error {
	return rq.InsertMessages([]*model.QueuedMessage{msg})
}

func (rq *redisQueueDao) InsertMessages(msgs []*model.QueuedMessage) error {
	msgKey := rq.getNamespaceKey(QUEUE_MSG_KEY)
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	ctx := context.Background()
	pipe := rq.redisClient.Pipeline()
	for _, msg := range msgs {
		data, err := encode(*msg)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, msgKey, msg.Id, string(data))
		pipe.ZAdd(ctx, schedKey, rd.Z{Score: float64(scheduledMillis(msg)), Member: msg.Id})
		if msg.FirstContact && len(msg.SessionId) > 0 {
			pipe.Incr(ctx, rq.usageKey(msg.SessionId, msg.CreatedAt))
			pipe.Expire(ctx, rq.usageKey(msg.SessionId, msg.CreatedAt), 48*time.Hour)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error inserting queue messages", zap.Int("count", len(msgs)), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func scheduledMillis(msg *model.QueuedMessage) int64 {
	if msg.ScheduledAt != nil {
		return msg.ScheduledAt.UnixMilli()
	}
	return msg.CreatedAt.UnixMilli()
}

// FetchNextEligible scans the due slice of the schedule and picks the highest
// priority row, earliest first on ties. The row stays scheduled until
// MarkProcessing removes it; at most one processor runs cluster-wide.
func (rq *redisQueueDao) FetchNextEligible(now time.Time) (*model.QueuedMessage, error) {
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	ctx := context.Background()
	ids, err := rq.redisClient.ZRangeByScore(ctx, schedKey, &rd.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: fetchBatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var best *model.QueuedMessage
	for _, id := range ids {
		msg, err := rq.getMessage(id)
		if err != nil {
			logger.Warn("dropping unreadable queued message", zap.String("id", id), zap.Error(err))
			rq.redisClient.ZRem(ctx, schedKey, id)
			continue
		}
		if msg.Status != model.MESSAGE_PENDING {
			rq.redisClient.ZRem(ctx, schedKey, id)
			continue
		}
		if best == nil || msg.Priority > best.Priority {
			best = msg
		}
	}
	return best, nil
}

func (rq *redisQueueDao) getMessage(id string) (*model.QueuedMessage, error) {
	msgKey := rq.getNamespaceKey(QUEUE_MSG_KEY)
	ctx := context.Background()
	raw, err := rq.redisClient.HGet(ctx, msgKey, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "queued message", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return decode[model.QueuedMessage]([]byte(raw))
}

func (rq *redisQueueDao) MarkProcessing(id string) error {
	return rq.transition(id, func(msg *model.QueuedMessage) {
		msg.Status = model.MESSAGE_PROCESSING
	}, true)
}

func (rq *redisQueueDao) MarkSent(id string, at time.Time) error {
	return rq.transition(id, func(msg *model.QueuedMessage) {
		msg.Status = model.MESSAGE_SENT
		msg.SentAt = &at
	}, true)
}

func (rq *redisQueueDao) MarkFailed(id string, errMsg string) error {
	return rq.transition(id, func(msg *model.QueuedMessage) {
		msg.Status = model.MESSAGE_FAILED
		msg.ErrorMessage = errMsg
	}, true)
}

func (rq *redisQueueDao) MarkCancelled(id string) error {
	return rq.transition(id, func(msg *model.QueuedMessage) {
		msg.Status = model.MESSAGE_CANCELLED
	}, true)
}

func (rq *redisQueueDao) AssignSession(id string, sessionId string) error {
	return rq.transition(id, func(msg *model.QueuedMessage) {
		msg.SessionId = sessionId
	}, false)
}

// transition rewrites the full row and all affected indexes in one pipelined
// round trip. Terminal rows are kept for audit and throttling queries.
func (rq *redisQueueDao) transition(id string, mutate func(*model.QueuedMessage), unschedule bool) error {
	msg, err := rq.getMessage(id)
	if err != nil {
		return err
	}
	before := msg.Status
	beforeSession := msg.SessionId
	mutate(msg)

	msgKey := rq.getNamespaceKey(QUEUE_MSG_KEY)
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	data, err := encode(*msg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := rq.redisClient.Pipeline()
	pipe.HSet(ctx, msgKey, msg.Id, string(data))
	if unschedule {
		pipe.ZRem(ctx, schedKey, msg.Id)
	}
	if msg.FirstContact {
		terminalLoss := (msg.Status == model.MESSAGE_FAILED || msg.Status == model.MESSAGE_CANCELLED) &&
			before != model.MESSAGE_FAILED && before != model.MESSAGE_CANCELLED
		if terminalLoss && len(msg.SessionId) > 0 {
			pipe.Decr(ctx, rq.usageKey(msg.SessionId, msg.CreatedAt))
		}
		if len(msg.SessionId) > 0 && len(beforeSession) == 0 {
			pipe.Incr(ctx, rq.usageKey(msg.SessionId, msg.CreatedAt))
			pipe.Expire(ctx, rq.usageKey(msg.SessionId, msg.CreatedAt), 48*time.Hour)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error updating queue message", zap.String("id", id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rq *redisQueueDao) PendingCount() (int, error) {
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	ctx := context.Background()
	count, err := rq.redisClient.ZCard(ctx, schedKey).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return int(count), nil
}

func (rq *redisQueueDao) CancelPending(campaignId string) (int, error) {
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	ctx := context.Background()
	ids, err := rq.redisClient.ZRange(ctx, schedKey, 0, -1).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	cancelled := 0
	for _, id := range ids {
		msg, err := rq.getMessage(id)
		if err != nil {
			continue
		}
		if msg.Status != model.MESSAGE_PENDING {
			continue
		}
		if len(campaignId) > 0 && msg.CampaignId != campaignId {
			continue
		}
		if err := rq.MarkCancelled(id); err == nil {
			cancelled++
		}
	}
	return cancelled, nil
}

func (rq *redisQueueDao) UsedToday(sessionId string, now time.Time) (int, error) {
	ctx := context.Background()
	raw, err := rq.redisClient.Get(ctx, rq.usageKey(sessionId, now)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return 0, nil
		}
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	used, err := strconv.Atoi(raw)
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	if used < 0 {
		used = 0
	}
	return used, nil
}

func (rq *redisQueueDao) FailPendingChatMessage(leadId string, conversationId string, errMsg string) error {
	schedKey := rq.getNamespaceKey(QUEUE_SCHEDULED_KEY)
	ctx := context.Background()
	ids, err := rq.redisClient.ZRange(ctx, schedKey, 0, -1).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	for _, id := range ids {
		msg, err := rq.getMessage(id)
		if err != nil {
			continue
		}
		if msg.Status == model.MESSAGE_PENDING && msg.LeadId == leadId &&
			len(conversationId) > 0 && msg.ConversationId == conversationId {
			return rq.MarkFailed(id, errMsg)
		}
	}
	return nil
}

func (rq *redisQueueDao) usageKey(sessionId string, day time.Time) string {
	return rq.getNamespaceKey(USAGE_KEY, sessionId, day.Format("2006-01-02"))
}
