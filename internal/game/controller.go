// internal/game/controller.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultTickInterval is how often the Controller sweeps the games.
const DefaultTickInterval = 100 * time.Millisecond

// Controller drives every running game forward from the clock: it starts
// rounds when cooldowns lapse, times out rounds and ends finished games.
type Controller struct {
	reg      *Registry
	interval time.Duration
	log      *logrus.Entry
}

// NewController returns a controller sweeping reg every interval.
func NewController(reg *Registry, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Controller{
		reg:      reg,
		interval: interval,
		log:      reg.log.WithField("component", "controller"),
	}
}

// Run sweeps until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.log.Infof("controller started, interval %s", c.interval)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopped")
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep advances each registered game by at most one step.
func (c *Controller) Sweep() {
	start := time.Now()
	for _, g := range c.reg.Games() {
		c.advance(g)
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (c *Controller) advance(g *Game) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ControllerPanics.Inc()
			c.log.WithField("game", g.ID).Errorf("recovered panic while advancing game: %v", r)
		}
	}()

	group := g.group
	group.mu.Lock()
	defer group.mu.Unlock()

	// The game may have ended or lost its group since the snapshot.
	if g.closed || !g.inProgress {
		return
	}
	if g.IsFinished() {
		g.endUnsafe()
		return
	}

	now := c.reg.now()
	if now.Before(g.nextAction) {
		return
	}

	last := g.lastRound()
	if last != nil && !last.finished {
		last.end(metrics.ReasonTimeout)
		return
	}

	team := g.CurrentTeam()
	if team == nil {
		g.endUnsafe()
		return
	}
	r := newRound(g, team, len(g.rounds)+1)
	g.rounds = append(g.rounds, r)
	g.nextAction = now.Add(RoundDuration)
	r.start()
}
