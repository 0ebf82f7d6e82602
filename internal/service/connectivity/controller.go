package connectivity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

// Drainer runs one drain cycle; ran is false when the cycle was skipped.
type Drainer interface {
	Drain(ctx context.Context) (outcome models.SyncOutcome, ran bool)
	IsDraining() bool
}

// Controller decides when a drain cycle starts: on each offline-to-online
// transition, on the periodic tick and on explicit request.
type Controller struct {
	monitor *Monitor
	engine  Drainer
	logger  *zap.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewController subscribes to the monitor's transitions. Background drains
// run under ctx.
func NewController(ctx context.Context, monitor *Monitor, engine Drainer, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{monitor: monitor, engine: engine, logger: logger, ctx: ctx}
	monitor.OnTransition(c.handleTransition)
	return c
}

func (c *Controller) handleTransition(online bool) {
	if !online {
		return
	}
	c.logger.Info("back online, starting drain")
	c.startBackground("reconnect")
}

// Tick starts a background drain when online and idle.
func (c *Controller) Tick() {
	if !c.monitor.IsOnline() || c.engine.IsDraining() {
		return
	}
	c.startBackground("tick")
}

// SyncNow runs a drain in the caller's goroutine.
func (c *Controller) SyncNow(ctx context.Context) (models.SyncOutcome, error) {
	if !c.monitor.IsOnline() {
		return models.SyncOutcome{}, models.ErrOffline
	}
	outcome, ran := c.engine.Drain(ctx)
	if !ran {
		// Online was observed above, so a skipped cycle means another one held the guard.
		return models.SyncOutcome{}, models.ErrSyncInProgress
	}
	return outcome, nil
}

// Wait blocks until background drains have returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) startBackground(reason string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		outcome, ran := c.engine.Drain(c.ctx)
		if !ran {
			c.logger.Debug("background drain skipped", zap.String("reason", reason))
			return
		}
		c.logger.Debug("background drain done", zap.String("reason", reason), zap.String("status", string(outcome.Status)))
	}()
}
