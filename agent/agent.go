// Package agent wires storage, the intent resolver, the flow engine, the
// dispatch queue and the rest server into one runnable unit.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/zapflow/zapflow/classifier"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/engine"
	"github.com/zapflow/zapflow/events"
	"github.com/zapflow/zapflow/intent"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"github.com/zapflow/zapflow/persistence/redis"
	"github.com/zapflow/zapflow/queue"
	"github.com/zapflow/zapflow/rest"
	"go.uber.org/zap"
)

type Agent struct {
	Config  config.Config
	Storage persistence.Storage
	Engine  *engine.Engine
	Queue   *queue.DispatchQueue
	Emitter events.Emitter

	server       *rest.Server
	shutdown     bool
	shutdownLock sync.Mutex
}

// Sender is the injected WhatsApp transport. The session lifecycle (pairing,
// reconnection, credentials) lives entirely outside this process.
type Sender interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

func New(cfg config.Config, sender Sender) (*Agent, error) {
	storage := redis.NewStore(redis.Config{
		Addrs:     cfg.RedisConfig.Addrs,
		Namespace: cfg.RedisConfig.Namespace,
	})

	var emitter events.Emitter = events.NoopEmitter{}
	if len(cfg.AmqpUrl) > 0 {
		amqpEmitter, err := events.NewAmqpEmitter(cfg.AmqpUrl, "zapflow.events")
		if err != nil {
			logger.Warn("amqp unavailable, events disabled", zap.Error(err))
		} else {
			emitter = amqpEmitter
		}
	}

	var semantic classifier.Classifier
	if len(cfg.Classifier.Endpoint) > 0 {
		semantic = classifier.NewHttpClassifier(cfg.Classifier)
	}
	resolver := intent.NewResolver(semantic, cfg.Intent)

	cacheTTL := time.Duration(cfg.ExecutionCacheMinutes) * time.Minute
	eng := engine.New(storage, resolver, engine.SendFunc(sender.Send), emitter, cacheTTL)

	allocator := queue.NewAllocator(storage)
	dq := queue.NewDispatchQueue(storage, sender, allocator, emitter, cfg.Queue)

	server, err := rest.NewServer(cfg.HttpPort, storage, eng, dq)
	if err != nil {
		return nil, err
	}

	return &Agent{
		Config:  cfg,
		Storage: storage,
		Engine:  eng,
		Queue:   dq,
		Emitter: emitter,
		server:  server,
	}, nil
}

func (a *Agent) Start() error {
	a.Queue.Start()
	go func() {
		if err := a.server.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	a.Queue.Stop()
	if err := a.server.Stop(); err != nil {
		return err
	}
	return a.Emitter.Close()
}
