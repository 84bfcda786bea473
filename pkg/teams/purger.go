package teams

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quillback/taskdeck/pkg/observability"
)

// Purger periodically deletes expired invitations on a cron schedule
type Purger struct {
	service *Service
	logger  *observability.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
}

// NewPurger creates a purger. metrics may be nil.
func NewPurger(service *Service, logger *observability.Logger, metrics *observability.Metrics) *Purger {
	return &Purger{
		service: service,
		logger:  logger,
		metrics: metrics,
		cron:    cron.New(),
	}
}

// Start schedules the purge job and starts the cron runner. The schedule
// accepts standard cron syntax and descriptors like "@hourly".
func (p *Purger) Start(schedule string) error {
	_, err := p.cron.AddFunc(schedule, p.run)
	if err != nil {
		return err
	}
	p.cron.Start()
	p.logger.WithField("schedule", schedule).Info("Invitation purge job scheduled")
	return nil
}

// Stop stops the cron runner and waits for a running job to finish
func (p *Purger) Stop(ctx context.Context) error {
	stopped := p.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Purger) run() {
	defer observability.RecoverPanic(p.logger, "invitation purge")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := p.service.PurgeExpired(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Invitation purge failed")
		return
	}
	if purged > 0 {
		p.logger.WithField("purged", purged).Info("Purged expired invitations")
		if p.metrics != nil {
			p.metrics.InvitationsPurged.Add(float64(purged))
		}
	}
}
