package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/schoolsoft-sync/internal/persistence"
)

// ScheduleService answers schedule queries from the local cache. It never
// touches the network, so every operation works offline.
type ScheduleService struct {
	timetables persistence.TimetableRepository
	now        func() time.Time
	logger     *slog.Logger
}

// NewScheduleService wires dependencies for schedule queries.
func NewScheduleService(timetables persistence.TimetableRepository, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		timetables: timetables,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

// Current returns the lesson in progress right now, if any.
func (s *ScheduleService) Current(ctx context.Context) (LessonView, bool, error) {
	row, ok, err := s.timetables.Current(ctx, persistence.InstantOf(s.now()))
	if err != nil || !ok {
		return LessonView{}, false, err
	}
	return lessonView(row), true, nil
}

// Next returns the first lesson starting after now, if any.
func (s *ScheduleService) Next(ctx context.Context) (LessonView, bool, error) {
	row, ok, err := s.timetables.Next(ctx, persistence.InstantOf(s.now()))
	if err != nil || !ok {
		return LessonView{}, false, err
	}
	return lessonView(row), true, nil
}

// Previous returns the most recent lesson that has already ended, if any.
func (s *ScheduleService) Previous(ctx context.Context) (LessonView, bool, error) {
	row, ok, err := s.timetables.Previous(ctx, persistence.InstantOf(s.now()))
	if err != nil || !ok {
		return LessonView{}, false, err
	}
	return lessonView(row), true, nil
}

// Week lists the cached lessons for a school week, optionally restricted to a
// single weekday.
func (s *ScheduleService) Week(ctx context.Context, week int, weekday *time.Weekday) ([]LessonView, error) {
	var day *int
	if weekday != nil {
		d := storageWeekday(*weekday)
		day = &d
	}
	rows, err := s.timetables.LessonsByWeek(ctx, week, day)
	if err != nil {
		return nil, err
	}
	return lessonViews(rows), nil
}

// Between lists cached lessons overlapping the half-open interval [from, to).
// A zero bound leaves that side open.
func (s *ScheduleService) Between(ctx context.Context, from, to time.Time) ([]LessonView, error) {
	var filter persistence.LessonFilter
	if !from.IsZero() {
		instant := persistence.InstantOf(from)
		filter.After = &instant
	}
	if !to.IsZero() {
		instant := persistence.InstantOf(to)
		filter.Before = &instant
	}
	rows, err := s.timetables.LessonsInRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	return lessonViews(rows), nil
}

// Today lists the cached lessons for the current calendar day in order.
func (s *ScheduleService) Today(ctx context.Context) ([]LessonView, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.Between(ctx, start, start.AddDate(0, 0, 1))
}
