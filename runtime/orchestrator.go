// Package runtime owns live connections, presence, routing and delivery receipts.
// It holds no transport code: connections come in through contract.Connection.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Options struct {
	NumberOfNotifiers     int
	NotificationQueueSize int
	NotificationTimeout   time.Duration
	MetricInterval        time.Duration
	PreviewLength         int
}

// Orchestrator builds the core graph and runs its background workers under the supervisor.
type Orchestrator struct {
	log        *slog.Logger
	options    Options
	supervisor contract.ISupervisor
	registry   *Registry
	presence   *PresenceTracker
	router     *Router
	delivery   *DeliveryStateMachine
	dispatcher *workers.NotificationDispatcher
	push       contract.INotifier
}

// NewOrchestrator wires registry, presence, router and state machine together.
// push is the real offline notifier, reached through an async queue. It may be nil,
// offline recipients are then only counted as fallback.
func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, statuses storage.IStatusRepository,
	push contract.INotifier, options Options) *Orchestrator {
	registry := NewRegistry(log)
	presence := NewPresenceTracker(registry, log)
	registry.WithObserver(presence)

	o := &Orchestrator{
		log:        log,
		options:    options,
		supervisor: supervisor,
		registry:   registry,
		presence:   presence,
		delivery:   NewDeliveryStateMachine(statuses, registry, log),
		push:       push,
	}

	var notifier contract.INotifier
	if push != nil {
		o.dispatcher = workers.NewNotificationDispatcher(options.NotificationQueueSize, log)
		notifier = o.dispatcher
	}
	o.router = NewRouter(registry, notifier, log, options.PreviewLength)
	return o
}

func (o *Orchestrator) Registry() *Registry                         { return o.registry }
func (o *Orchestrator) Presence() *PresenceTracker                  { return o.presence }
func (o *Orchestrator) Router() *Router                             { return o.router }
func (o *Orchestrator) Delivery() *DeliveryStateMachine             { return o.delivery }
func (o *Orchestrator) Dispatcher() *workers.NotificationDispatcher { return o.dispatcher }

// Start registers the background workers and blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.dispatcher != nil {
		for i := 0; i < max(o.options.NumberOfNotifiers, 1); i++ {
			o.supervisor.Add(workers.NewNotificationWorker(o.dispatcher.Jobs(), o.push, o.options.NotificationTimeout, o.log))
		}
		o.log.Info(fmt.Sprintf("%d notification workers ready", max(o.options.NumberOfNotifiers, 1)))
	}
	if o.options.MetricInterval > 0 {
		var queue workers.QueueGauge = emptyQueue{}
		if o.dispatcher != nil {
			queue = o.dispatcher
		}
		o.supervisor.Add(workers.NewStatsWorker(o.log, o.registry, queue, o.options.MetricInterval))
	}

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

type emptyQueue struct{}

func (emptyQueue) Depth() int    { return 0 }
func (emptyQueue) Capacity() int { return 0 }
