// Package reminder sends one deadline reminder per task per calendar day to
// each watcher, using a write-once marker in the watcher's namespace.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
)

const dayLayout = "2006-01-02"

// Tasks finds the watcher's unfinished tasks due in a window.
type Tasks interface {
	DueBetween(ctx context.Context, watcher string, from, to time.Time) ([]domain.Task, error)
}

// Markers stores reminder markers. *repo.MarkerRepo implements it.
type Markers interface {
	Exists(ctx context.Context, recipient, id string) (bool, error)
	Put(ctx context.Context, m domain.ReminderMarker) error
}

// Sender writes notifications. *notify.Service implements it.
type Sender interface {
	Notify(ctx context.Context, recipients []string, ev notify.Event) notify.Report
}

// MarkerID is the marker key for a task on a calendar day.
func MarkerID(taskID string, day time.Time) string {
	return fmt.Sprintf("alert_%s_%s", taskID, day.Format(dayLayout))
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

var systemActor = domain.Identity{ID: "system", DisplayName: "Nexo"}

type Scheduler struct {
	tasks   Tasks
	markers Markers
	sender  Sender
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler creates a Scheduler. Calendar days are taken in loc; nil means UTC.
func NewScheduler(tasks Tasks, markers Markers, sender Sender, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tasks: tasks, markers: markers, sender: sender, loc: loc, logger: logger, now: time.Now}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Window returns start and end of tomorrow relative to now, in the
// scheduler's time zone, plus today's date.
func (s *Scheduler) Window(now time.Time) (today, from, to time.Time) {
	local := now.In(s.loc)
	today = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	from = today.AddDate(0, 0, 1)
	to = from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return today, from, to
}

// Sweep reminds recipient of every watched task due tomorrow that has no
// marker for today. The notification is written before the marker, so a
// failure between the two can repeat a reminder but never lose one.
func (s *Scheduler) Sweep(ctx context.Context, recipient string) (SweepResult, error) {
	var res SweepResult
	today, from, to := s.Window(s.now())
	due, err := s.tasks.DueBetween(ctx, recipient, from, to)
	if err != nil {
		return res, fmt.Errorf("find due tasks: %w", err)
	}
	res.Due = len(due)
	log := s.logger.With(slog.String("recipient", recipient), slog.String("day", today.Format(dayLayout)))
	for _, t := range due {
		id := MarkerID(t.ID, today)
		seen, err := s.markers.Exists(ctx, recipient, id)
		if err != nil {
			log.Warn("reminder marker lookup failed", slog.String("marker", id), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		if seen {
			res.Skipped++
			continue
		}
		rep := s.sender.Notify(ctx, []string{recipient}, notify.Event{
			Type:      domain.NotifySystem,
			Actor:     systemActor,
			Title:     "Due tomorrow",
			Message:   s.message(t),
			TaskID:    t.ID,
			ProjectID: t.ProjectID,
		})
		if !rep.OK() {
			// No marker: the next sweep tries again.
			res.Failed++
			continue
		}
		res.Sent++
		if err := s.markers.Put(ctx, domain.ReminderMarker{
			ID:        id,
			Recipient: recipient,
			TaskID:    t.ID,
			Day:       today.Format(dayLayout),
			CreatedAt: s.now().UTC(),
		}); err != nil {
			log.Warn("reminder marker not written", slog.String("marker", id), slog.String("error", err.Error()))
		}
	}
	if res.Sent > 0 || res.Failed > 0 {
		log.Info("reminder sweep", slog.Int("due", res.Due), slog.Int("sent", res.Sent), slog.Int("failed", res.Failed))
	}
	return res, nil
}

func (s *Scheduler) message(t domain.Task) string {
	if t.DueDate == nil {
		return fmt.Sprintf("%q is due tomorrow", t.Title)
	}
	return fmt.Sprintf("%q is due %s", t.Title, t.DueDate.In(s.loc).Format("Mon Jan 2 15:04"))
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context, recipient string, interval time.Duration) {
	sweep := func() {
		if _, err := s.Sweep(ctx, recipient); err != nil && ctx.Err() == nil {
			s.logger.Warn("reminder sweep failed", slog.String("recipient", recipient), slog.String("error", err.Error()))
		}
	}
	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
