package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/schoolsoft-sync/internal/persistence/sqlite"
	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/session"
	"github.com/example/schoolsoft-sync/internal/testfixtures"
	"github.com/example/schoolsoft-sync/internal/timetable"
)

var mockSchool = timetable.School{Name: "Mock", URL: "https://sms.schoolsoft.se/mock"}

type harness struct {
	api        *testfixtures.ScriptedAPI
	clock      *testfixtures.Clock
	manager    *session.Manager
	timetables *sqlite.TimetableRepository
	sync       *SyncService
	schedule   *ScheduleService
}

// newHarness wires a sync service over a real temporary cache, a scripted
// wire client, and a session restored for the mock school. The clock starts
// on Monday 2023-10-02 at 08:30, inside ISO week 40.
func newHarness(t *testing.T) *harness {
	t.Helper()

	pool, err := sqlite.NewConnectionPool(filepath.Join(t.TempDir(), "schoolsync.db"))
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := testfixtures.NewClock(time.Date(2023, time.October, 2, 8, 30, 0, 0, time.UTC))
	api := testfixtures.NewScriptedAPI()
	api.TokenResponse = schoolsoft.TokenResponse{
		Token:      "tok-1",
		ExpiryDate: clock.Now().Add(3 * time.Hour).Format("2006-01-02 15:04:05.000"),
	}

	manager := session.NewManager(api, time.Hour, clock.NowFunc(), nil)
	manager.Restore(timetable.User{
		Username:     "22linmic",
		School:       mockSchool,
		Organization: timetable.Organization{OrgID: 1, School: mockSchool, Name: "Mock School"},
		Type:         timetable.UserTypeStudent,
	}, "key-123")

	timetables := sqlite.NewTimetableRepository(pool)
	return &harness{
		api:        api,
		clock:      clock,
		manager:    manager,
		timetables: timetables,
		sync:       NewSyncService(manager, api, timetables, clock.NowFunc(), nil),
		schedule:   NewScheduleService(timetables, clock.NowFunc(), nil),
	}
}

func TestRefresh_PopulatesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.Lessons = []schoolsoft.LessonRecord{
		testfixtures.NewLessonRecord(
			testfixtures.WithSubject(11, "Math"),
			testfixtures.WithWeeks("40-41"),
		),
		testfixtures.NewLessonRecord(
			testfixtures.WithSubject(11, "Math"),
			testfixtures.WithWeeks("40"),
			testfixtures.WithDay(2),
			testfixtures.WithTimes("1970-01-01 13:00:00.0", "1970-01-01 14:30:00.0"),
		),
	}

	report, err := h.sync.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if report.Subjects != 1 || report.Occasions != 2 || report.Lessons != 3 {
		t.Fatalf("report = %+v, want 1 subject, 2 occasions, 3 lessons", report)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("unexpected skipped records: %v", report.Skipped)
	}

	week40, err := h.schedule.Week(ctx, 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 2 {
		t.Fatalf("week 40 has %d lessons, want 2", len(week40))
	}
	if week40[0].Subject != "Math" {
		t.Errorf("subject = %q", week40[0].Subject)
	}
	if week40[0].Weekday != time.Monday || week40[1].Weekday != time.Wednesday {
		t.Errorf("week 40 days = %v, %v", week40[0].Weekday, week40[1].Weekday)
	}
	if got := week40[0].Start; !got.Equal(time.Date(2023, time.October, 2, 8, 10, 0, 0, time.UTC)) {
		t.Errorf("first lesson starts %v", got)
	}
}

func TestRefresh_ReplacesPreviousContents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}
	if _, err := h.sync.Refresh(ctx); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}

	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("41"))}
	if _, err := h.sync.Refresh(ctx); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	week40, err := h.schedule.Week(ctx, 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 0 {
		t.Errorf("stale week 40 lessons survived the replace: %v", week40)
	}
	week41, err := h.schedule.Week(ctx, 41, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week41) != 1 {
		t.Errorf("week 41 has %d lessons, want 1", len(week41))
	}
}

func TestRefresh_FetchFailureLeavesCacheIntact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}
	if _, err := h.sync.Refresh(ctx); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}

	h.api.LessonsErr = schoolsoft.ErrConnection
	_, err := h.sync.Refresh(ctx)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Step != StepFetch {
		t.Fatalf("Refresh = %v, want SyncError in fetch step", err)
	}
	if !errors.Is(err, schoolsoft.ErrConnection) {
		t.Errorf("cause not preserved: %v", err)
	}

	week40, err := h.schedule.Week(ctx, 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 1 {
		t.Errorf("cache lost after failed refresh: %d lessons", len(week40))
	}
}

func TestRefresh_AllRecordsBadFailsWithoutStoring(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}
	if _, err := h.sync.Refresh(ctx); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}

	h.api.Lessons = []schoolsoft.LessonRecord{
		testfixtures.NewLessonRecord(testfixtures.WithTimes("garbage", "garbage")),
	}
	_, err := h.sync.Refresh(ctx)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Step != StepNormalize {
		t.Fatalf("Refresh = %v, want SyncError in normalize step", err)
	}

	week40, err := h.schedule.Week(ctx, 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 1 {
		t.Errorf("cache replaced by an all-bad feed: %d lessons", len(week40))
	}
}

func TestRefresh_RequiresActiveSession(t *testing.T) {
	h := newHarness(t)
	h.manager.Logout()

	_, err := h.sync.Refresh(context.Background())
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Step != StepToken {
		t.Fatalf("Refresh without session = %v, want SyncError in token step", err)
	}
}

func TestRefresh_RequiresOrganization(t *testing.T) {
	h := newHarness(t)
	h.manager.Restore(timetable.User{School: mockSchool}, "key-123")

	if _, err := h.sync.Refresh(context.Background()); !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("Refresh = %v, want ErrNoOrganization", err)
	}
}

// reentrantSource triggers a second refresh from inside the fetch step so the
// overlap guard can be observed deterministically.
type reentrantSource struct {
	inner   *testfixtures.ScriptedAPI
	service **SyncService
	overlap error
}

func (r *reentrantSource) StudentLessons(ctx context.Context, schoolURL, token string, orgID int) ([]schoolsoft.LessonRecord, error) {
	_, r.overlap = (*r.service).Refresh(ctx)
	return r.inner.StudentLessons(ctx, schoolURL, token, orgID)
}

func TestRefresh_RejectsOverlappingRuns(t *testing.T) {
	h := newHarness(t)
	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}

	source := &reentrantSource{inner: h.api}
	svc := NewSyncService(h.manager, source, h.timetables, h.clock.NowFunc(), nil)
	source.service = &svc

	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("outer refresh failed: %v", err)
	}
	if !errors.Is(source.overlap, ErrRefreshInFlight) {
		t.Fatalf("inner refresh = %v, want ErrRefreshInFlight", source.overlap)
	}
}

// shiftingSession walks through a scripted sequence of epoch readings, as a
// logout racing the refresh would produce.
type shiftingSession struct {
	user   timetable.User
	epochs []uint64
	calls  int
}

func (s *shiftingSession) EnsureToken(context.Context) (timetable.Token, error) {
	return timetable.Token{Value: "tok-1", Expiry: time.Now().Add(time.Hour)}, nil
}

func (s *shiftingSession) ActiveUser() (timetable.User, bool) { return s.user, true }

func (s *shiftingSession) Epoch() uint64 {
	epoch := s.epochs[s.calls]
	if s.calls < len(s.epochs)-1 {
		s.calls++
	}
	return epoch
}

func TestRefresh_DiscardsResultAfterSessionChange(t *testing.T) {
	h := newHarness(t)
	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}

	sess := &shiftingSession{
		user: timetable.User{
			School:       mockSchool,
			Organization: timetable.Organization{OrgID: 1},
		},
		epochs: []uint64{1, 2},
	}
	svc := NewSyncService(sess, h.api, h.timetables, h.clock.NowFunc(), nil)

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, ErrSessionChanged) {
		t.Fatalf("Refresh = %v, want ErrSessionChanged", err)
	}

	week40, err := h.schedule.Week(context.Background(), 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 0 {
		t.Errorf("result stored despite session change: %d lessons", len(week40))
	}
}

func TestRefresh_DiscardsResultWhenSessionChangesDuringStore(t *testing.T) {
	h := newHarness(t)
	h.api.Lessons = []schoolsoft.LessonRecord{testfixtures.NewLessonRecord(testfixtures.WithWeeks("40"))}

	// The epoch only shifts on the third read, which happens inside the
	// replace transaction, so the pre-store check alone would let the
	// write through.
	sess := &shiftingSession{
		user: timetable.User{
			School:       mockSchool,
			Organization: timetable.Organization{OrgID: 1},
		},
		epochs: []uint64{1, 1, 2},
	}
	svc := NewSyncService(sess, h.api, h.timetables, h.clock.NowFunc(), nil)

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, ErrSessionChanged) {
		t.Fatalf("Refresh = %v, want ErrSessionChanged", err)
	}

	week40, err := h.schedule.Week(context.Background(), 40, nil)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(week40) != 0 {
		t.Errorf("write committed despite session change: %d lessons", len(week40))
	}
}
