package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/example/schoolsoft-sync/internal/normalize"
	"github.com/example/schoolsoft-sync/internal/persistence"
	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/timetable"
)

// LessonSource fetches raw lesson records from the wire.
type LessonSource interface {
	StudentLessons(ctx context.Context, schoolURL, token string, orgID int) ([]schoolsoft.LessonRecord, error)
}

// Session exposes the slice of the session manager the sync service drives.
type Session interface {
	EnsureToken(ctx context.Context) (timetable.Token, error)
	ActiveUser() (timetable.User, bool)
	Epoch() uint64
}

// SyncService pulls the remote timetable and replaces the local cache with it.
// At most one refresh runs at a time.
type SyncService struct {
	session    Session
	source     LessonSource
	timetables persistence.TimetableRepository
	now        func() time.Time
	logger     *slog.Logger

	refreshing atomic.Bool
}

// NewSyncService wires dependencies for timetable refreshes.
func NewSyncService(sess Session, source LessonSource, timetables persistence.TimetableRepository, now func() time.Time, logger *slog.Logger) *SyncService {
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		session:    sess,
		source:     source,
		timetables: timetables,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

// Refresh fetches the active user's lessons, normalizes them and atomically
// replaces the cache contents. Any step failing leaves the cache untouched. A
// login change or logout between start and completion discards the result.
func (s *SyncService) Refresh(ctx context.Context) (RefreshReport, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return RefreshReport{}, ErrRefreshInFlight
	}
	defer s.refreshing.Store(false)

	logger := serviceLogger(ctx, s.logger, "sync", "refresh")

	user, ok := s.session.ActiveUser()
	if !ok {
		return RefreshReport{}, &SyncError{Step: StepToken, Err: errors.New("no active session")}
	}
	if user.Organization.OrgID == 0 {
		return RefreshReport{}, ErrNoOrganization
	}
	epoch := s.session.Epoch()

	token, err := s.session.EnsureToken(ctx)
	if err != nil {
		logger.Error("token acquisition failed", "error", err, "error_kind", ErrorKind(err))
		return RefreshReport{}, &SyncError{Step: StepToken, Err: err}
	}

	records, err := s.source.StudentLessons(ctx, user.School.URL, token.Value, user.Organization.OrgID)
	if err != nil {
		logger.Error("lesson fetch failed", "error", err, "error_kind", ErrorKind(err))
		return RefreshReport{}, &SyncError{Step: StepFetch, Err: err}
	}

	lessons, skipped := normalize.Normalize(user.School.URL, records, s.now())
	if len(records) > 0 && len(lessons) == 0 {
		// Every record failed; replacing the cache with nothing would
		// destroy a working timetable over what is likely a feed change.
		errs := make([]error, len(skipped))
		for i, re := range skipped {
			errs[i] = re
		}
		return RefreshReport{}, &SyncError{Step: StepNormalize, Err: errors.Join(errs...)}
	}

	if s.session.Epoch() != epoch {
		logger.Warn("discarding refresh result", "reason", "session changed")
		return RefreshReport{}, ErrSessionChanged
	}

	subjects, occasions, rows := splitTimetable(lessons)
	// Re-checked inside the replace transaction so a logout racing the store
	// rolls the write back instead of committing a stale user's timetable.
	sameSession := func() error {
		if s.session.Epoch() != epoch {
			return ErrSessionChanged
		}
		return nil
	}
	if err := s.timetables.ReplaceTimetable(ctx, subjects, occasions, rows, sameSession); err != nil {
		if errors.Is(err, ErrSessionChanged) {
			logger.Warn("discarding refresh result", "reason", "session changed")
			return RefreshReport{}, ErrSessionChanged
		}
		logger.Error("cache replace failed", "error", err, "error_kind", ErrorKind(err))
		return RefreshReport{}, &SyncError{Step: StepStore, Err: err}
	}

	report := RefreshReport{
		Subjects:  len(subjects),
		Occasions: len(occasions),
		Lessons:   len(rows),
		Skipped:   skipped,
	}
	logger.Info("refresh complete",
		"subjects", report.Subjects,
		"occasions", report.Occasions,
		"lessons", report.Lessons,
		"skipped", len(report.Skipped))
	return report, nil
}
