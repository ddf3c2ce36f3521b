package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/notify"
)

// Archiver moves snapshots older than the retention window to cold storage.
type Archiver struct {
	snapshots     domain.SnapshotArchiver
	retentionDays int
	notifier      *notify.Notifier
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. notifier may be nil.
func NewArchiver(snapshots domain.SnapshotArchiver, retentionDays int, notifier *notify.Notifier, logger *slog.Logger) *Archiver {
	return &Archiver{
		snapshots:     snapshots,
		retentionDays: retentionDays,
		notifier:      notifier,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run archives every snapshot older than retentionDays.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	n, err := a.snapshots.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("archiving snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	a.logger.InfoContext(ctx, "archive run complete", slog.Int64("snapshots_archived", n))
	if n > 0 {
		if err := a.notifier.Notify(ctx, notify.EventArchiveComplete, "Snapshots archived",
			fmt.Sprintf("%d snapshots older than %s moved to cold storage", n, cutoff.Format("2006-01-02"))); err != nil {
			a.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
	return n, nil
}

// RunCron runs the archiver on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week", evaluated in UTC) until ctx is cancelled.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("cron %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is the set of values one cron field accepts. A nil set matches
// everything.
type cronField map[int]bool

func (f cronField) matches(v int) bool {
	return f == nil || f[v]
}

// parseCronField accepts "*", "*/n", "a", "a/n", "a-b", "a-b/n" and
// comma-separated lists of those, with values in [floor, ceil].
func parseCronField(field string, floor, ceil int) (cronField, error) {
	if field == "*" {
		return nil, nil
	}

	set := cronField{}
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid step %q", part)
			}
			step = n
			part = base
		}

		lo, hi := floor, ceil
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err error
			if lo, err = strconv.Atoi(a); err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
			if hi, err = strconv.Atoi(b); err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", part, err)
			}
			lo, hi = v, v
			if step > 1 {
				hi = ceil
			}
		}

		if lo < floor || hi > ceil || lo > hi {
			return nil, fmt.Errorf("value %q out of range %d-%d", part, floor, ceil)
		}
		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}
	return set, nil
}

type cronSchedule struct {
	minute, hour, dayOfMonth, month, dayOfWeek cronField
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return cronSchedule{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}
	return cronSchedule{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first minute strictly after 'after' that matches,
// searching at most a year ahead.
func (c cronSchedule) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching time within one year")
}
