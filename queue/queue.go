// Package queue dispatches outbound WhatsApp messages: a scheduled queue
// with business-hours gating, per-minute throttling and multi-account sender
// allocation. One processing loop may be live cluster-wide; multi-process
// deployments coordinate that externally.
package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/events"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"github.com/zapflow/zapflow/util"
	"go.uber.org/zap"
)

// Sender is the injected send capability; it must return an error on failure.
type Sender interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

type DispatchQueue struct {
	storage   persistence.Storage
	sender    Sender
	allocator *Allocator
	emitter   events.Emitter
	hours     *hoursChecker
	cfg       config.QueueConfig

	worker     *util.TickWorker
	wg         sync.WaitGroup
	processing atomic.Bool

	minuteStart    time.Time
	sentThisMinute int

	now   func() time.Time
	sleep func(time.Duration)
}

func NewDispatchQueue(storage persistence.Storage, sender Sender, allocator *Allocator, emitter events.Emitter, cfg config.QueueConfig) *DispatchQueue {
	q := &DispatchQueue{
		storage:   storage,
		sender:    sender,
		allocator: allocator,
		emitter:   emitter,
		hours:     newHoursChecker(storage, cfg),
		cfg:       cfg,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	interval := time.Duration(cfg.TickIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	q.worker = util.NewTickWorker("dispatch-queue", interval, q.Tick, &q.wg)
	return q
}

func (q *DispatchQueue) Start() {
	q.worker.Start()
}

func (q *DispatchQueue) Stop() {
	if q.worker.IsRunning() {
		q.worker.Stop()
	}
	q.wg.Wait()
}

// Add enqueues one message. Messages in a conversation are chat replies;
// messages without one count as first contact for daily capacity purposes.
func (q *DispatchQueue) Add(msg *model.QueuedMessage) error {
	if len(msg.Id) == 0 {
		msg.Id = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = q.now()
	}
	msg.Status = model.MESSAGE_PENDING
	msg.FirstContact = len(msg.ConversationId) == 0
	if err := q.storage.InsertMessage(msg); err != nil {
		return err
	}
	q.emitter.Emit(model.EVENT_MESSAGE_QUEUED, map[string]any{
		"messageId": msg.Id, "leadId": msg.LeadId,
	})
	return nil
}

// AddBulk enqueues one message per lead, staggering scheduledAt with a
// uniformly random step inside [DelayMinMs, DelayMaxMs] when a batch start
// is given. Pre-resolved sender assignments are honored per lead.
func (q *DispatchQueue) AddBulk(req model.BulkEnqueueRequest) (int, error) {
	if len(req.LeadIds) == 0 {
		return 0, fmt.Errorf("bulk enqueue needs at least one lead")
	}
	var schedule *time.Time
	if req.StartAt != nil {
		start := *req.StartAt
		schedule = &start
	}
	now := q.now()
	msgs := make([]*model.QueuedMessage, 0, len(req.LeadIds))
	for _, leadId := range req.LeadIds {
		msg := &model.QueuedMessage{
			Id:           uuid.NewString(),
			LeadId:       leadId,
			CampaignId:   req.CampaignId,
			Content:      req.Content,
			MediaType:    req.MediaType,
			MediaUrl:     req.MediaUrl,
			Priority:     req.Priority,
			Status:       model.MESSAGE_PENDING,
			FirstContact: true,
			CreatedAt:    now,
		}
		if sessionId, ok := req.Assignments[leadId]; ok {
			msg.SessionId = sessionId
		}
		if schedule != nil {
			at := *schedule
			msg.ScheduledAt = &at
			next := schedule.Add(randomStagger(req.DelayMinMs, req.DelayMaxMs))
			schedule = &next
		}
		msgs = append(msgs, msg)
	}
	if err := q.storage.InsertMessages(msgs); err != nil {
		return 0, err
	}
	q.emitter.Emit(model.EVENT_BULK_QUEUED, map[string]any{
		"campaignId": req.CampaignId, "count": len(msgs),
	})
	logger.Info("bulk enqueued", zap.String("campaignId", req.CampaignId), zap.Int("count", len(msgs)))
	return len(msgs), nil
}

func randomStagger(minMs, maxMs int) time.Duration {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
}

// Clear cancels every pending row, optionally scoped to one campaign.
func (q *DispatchQueue) Clear(campaignId string) (int, error) {
	cancelled, err := q.storage.CancelPending(campaignId)
	if err != nil {
		return 0, err
	}
	q.emitter.Emit(model.EVENT_QUEUE_CLEARED, map[string]any{
		"campaignId": campaignId, "cancelled": cancelled,
	})
	return cancelled, nil
}

func (q *DispatchQueue) PendingCount() (int, error) {
	return q.storage.PendingCount()
}

// Tick is one pass of the processing loop: skipped entirely while a send is
// still in flight, so only one message is ever mid-send per process.
func (q *DispatchQueue) Tick() {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	now := q.now()
	if q.minuteStart.IsZero() || now.Sub(q.minuteStart) >= time.Minute {
		q.minuteStart = now
		q.sentThisMinute = 0
	}
	maxPerMinute, _ := q.storage.GetIntSetting(persistence.SETTING_QUEUE_MAX_PER_MINUTE, q.cfg.MaxPerMinute)
	if maxPerMinute > 0 && q.sentThisMinute >= maxPerMinute {
		return
	}
	if !q.hours.Open(now) {
		return
	}
	msg, err := q.storage.FetchNextEligible(now)
	if err != nil {
		logger.Error("error fetching next queued message", zap.Error(err))
		return
	}
	if msg == nil {
		return
	}
	if err := q.storage.MarkProcessing(msg.Id); err != nil {
		logger.Error("error marking message processing", zap.String("id", msg.Id), zap.Error(err))
		return
	}
	q.process(msg)
}

func (q *DispatchQueue) process(msg *model.QueuedMessage) {
	if err := q.dispatch(msg); err != nil {
		logger.Error("message dispatch failed", zap.String("id", msg.Id), zap.Error(err))
		if markErr := q.storage.MarkFailed(msg.Id, err.Error()); markErr != nil {
			logger.Error("error marking message failed", zap.String("id", msg.Id), zap.Error(markErr))
		}
		if len(msg.ConversationId) > 0 {
			if mirrorErr := q.storage.FailPendingChatMessage(msg.LeadId, msg.ConversationId, err.Error()); mirrorErr != nil {
				logger.Error("error mirroring failure to chat message", zap.Error(mirrorErr))
			}
		}
		q.emitter.Emit(model.EVENT_MESSAGE_FAILED, map[string]any{
			"messageId": msg.Id, "leadId": msg.LeadId, "error": err.Error(),
		})
		return
	}
	if err := q.storage.MarkSent(msg.Id, q.now()); err != nil {
		logger.Error("error marking message sent", zap.String("id", msg.Id), zap.Error(err))
	}
	q.sentThisMinute++
	q.emitter.Emit(model.EVENT_MESSAGE_SENT, map[string]any{
		"messageId": msg.Id, "leadId": msg.LeadId, "sessionId": msg.SessionId,
	})
	delaySeconds, _ := q.storage.GetIntSetting(persistence.SETTING_QUEUE_DELAY_SECONDS, q.cfg.MessageDelaySeconds)
	if delaySeconds > 0 {
		q.sleep(time.Duration(delaySeconds) * time.Second)
	}
}

func (q *DispatchQueue) dispatch(msg *model.QueuedMessage) error {
	lead, err := q.storage.GetLead(msg.LeadId)
	if err != nil {
		return err
	}
	if lead.Blocked {
		return fmt.Errorf("lead %s is blocked", lead.Id)
	}
	sessionId := msg.SessionId
	if len(sessionId) == 0 {
		strategy, fixed := q.allocationSettings()
		sessionId, err = q.allocator.AllocateForSingleLead(msg.CampaignId, strategy, fixed)
		if err != nil {
			return err
		}
		if err := q.storage.AssignSession(msg.Id, sessionId); err != nil {
			return err
		}
		msg.SessionId = sessionId
	}
	ctx := context.Background()
	return q.sender.Send(ctx, model.OutboundMessage{
		SessionId:      sessionId,
		To:             lead.Phone,
		Jid:            lead.Jid,
		Content:        msg.Content,
		MediaType:      msg.MediaType,
		MediaUrl:       msg.MediaUrl,
		ConversationId: msg.ConversationId,
	})
}

func (q *DispatchQueue) allocationSettings() (model.AllocationStrategy, string) {
	strategy, _ := q.storage.GetSetting("allocator_strategy", string(model.STRATEGY_ROUND_ROBIN))
	fixed, _ := q.storage.GetSetting("allocator_fixed_session", "")
	return model.AllocationStrategy(strategy), fixed
}
