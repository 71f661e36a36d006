package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"audittrail/internal/database"
	"audittrail/internal/domain"
	"audittrail/internal/versions"

	"github.com/robfig/cron/v3"
)

const (
	HourlyDigestSpec      = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	digestWindow          = 24 * time.Hour
	hourDigestTimeout     = 15 * time.Minute
	refreshSourcesTimeout = 30 * time.Minute
)

// DigestSender delivers the daily digest to a user's private chat.
type DigestSender interface {
	SendDigest(ctx context.Context, chatID int64, recent []domain.TaskVersion) error
}

type Scheduler struct {
	ctx         context.Context
	cron        *cron.Cron
	svc         *versions.Service
	db          *database.Database
	digest      DigestSender
	refreshSpec string
	now         func() time.Time
	log         *slog.Logger
}

// New builds a scheduler. With a nil digest sender only watched sources are refreshed.
func New(
	ctx context.Context,
	svc *versions.Service,
	db *database.Database,
	digest DigestSender,
	refreshSpec string,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:         ctx,
		cron:        c,
		svc:         svc,
		db:          db,
		digest:      digest,
		refreshSpec: refreshSpec,
		now:         time.Now,
		log:         log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.refreshSpec, s.refreshSources); err != nil {
		return fmt.Errorf("add refresh job %q: %w", s.refreshSpec, err)
	}

	if s.digest != nil {
		if _, err := s.cron.AddFunc(HourlyDigestSpec, s.sendHourDigest); err != nil {
			return fmt.Errorf("add digest job %q: %w", HourlyDigestSpec, err)
		}
	}

	s.cron.Start()

	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshSources() {
	ctx, cancel := context.WithTimeout(s.ctx, refreshSourcesTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	saved, err := s.svc.RefreshSources(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to refresh sources",
			"error", err,
			"savedVersions", saved)
		return
	}

	s.log.InfoContext(ctx, "Sources are refreshed",
		"savedVersions", saved)
}

func (s *Scheduler) sendHourDigest() {
	ctx, cancel := context.WithTimeout(s.ctx, hourDigestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	now := s.now().UTC()
	hourUTC := int64(now.Hour())

	users, err := s.db.GetDigestHourUsers(ctx, hourUTC)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get digest hour users",
			"error", err,
			"hourUTC", hourUTC)
		return
	}
	if len(users) == 0 {
		return
	}

	recent, err := s.svc.RecentVersions(ctx, now.Add(-digestWindow))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get recent versions",
			"error", err,
			"hourUTC", hourUTC,
			"userCount", len(users))
		return
	}
	if len(recent) == 0 {
		s.log.DebugContext(ctx, "No versions for digest",
			"hourUTC", hourUTC,
			"userCount", len(users))
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())
			return
		}

		if err = s.digest.SendDigest(ctx, userID, recent); err != nil {
			s.log.ErrorContext(ctx, "Failed to send user digest",
				"error", err,
				"hourUTC", hourUTC,
				"userID", userID,
				"versionCount", len(recent),
				"taskIDs", taskIDs(recent))
		}
	}
}

func taskIDs(recent []domain.TaskVersion) []string {
	seen := make(map[string]struct{})
	var ids []string

	for _, v := range recent {
		if _, ok := seen[v.TaskID]; ok {
			continue
		}

		seen[v.TaskID] = struct{}{}
		ids = append(ids, v.TaskID)
	}

	return ids
}
