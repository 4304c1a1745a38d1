// Package scheduler pushes the morning summary to the operators' chat.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"resortadmin/internal/app"
	"resortadmin/internal/domain"
)

type Scheduler struct {
	cron      *cron.Cron
	analytics *app.AnalyticsService
	notifier  domain.Notifier
	hour      int
}

func New(analytics *app.AnalyticsService, notifier domain.Notifier, loc *time.Location, hour int) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = 8
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		analytics: analytics,
		notifier:  notifier,
		hour:      hour,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("0 %d * * *", s.hour)
	if _, err := s.cron.AddFunc(spec, func() { s.sendDailyReport(ctx) }); err != nil {
		return fmt.Errorf("add daily report: %w", err)
	}
	s.cron.Start()
	log.Info().Int("hour", s.hour).Msg("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sendDailyReport(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	report, err := s.analytics.BuildDailyReport(ctx)
	if err != nil {
		log.Error().Err(err).Msg("daily report build failed")
		return
	}
	if err := s.notifier.DailyReport(ctx, report); err != nil {
		log.Error().Err(err).Msg("daily report send failed")
	}
}
