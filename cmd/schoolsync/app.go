package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/term"

	"github.com/example/schoolsoft-sync/internal/application"
	"github.com/example/schoolsoft-sync/internal/config"
	"github.com/example/schoolsoft-sync/internal/credstore"
	"github.com/example/schoolsoft-sync/internal/logging"
	"github.com/example/schoolsoft-sync/internal/persistence"
	"github.com/example/schoolsoft-sync/internal/persistence/sqlite"
	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/session"
	"github.com/example/schoolsoft-sync/internal/timetable"
)

// app holds the wired dependencies every command runs against.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger

	pool     *sqlite.ConnectionPool
	client   *schoolsoft.Client
	manager  *session.Manager
	creds    *credstore.Store
	sync     *application.SyncService
	schedule *application.ScheduleService
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	pool, err := sqlite.NewConnectionPool(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, pool); err != nil {
		_ = pool.Close()
		return nil, err
	}

	sealer, err := credstore.LoadSealer(cfg.SecretFile)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	client := schoolsoft.NewClient(schoolsoft.ClientConfig{
		BaseURL:    cfg.BaseURL,
		AppVersion: cfg.AppVersion,
		AppOS:      cfg.AppOS,
		DeviceID:   cfg.DeviceID,
	}, nil, logger)

	manager := session.NewManager(client, cfg.TokenRefreshMargin, nil, logger)
	creds := credstore.NewStore(sqlite.NewLoginRepository(pool), sealer)
	timetables := sqlite.NewTimetableRepository(pool)

	a := &app{
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		client:     client,
		manager:    manager,
		creds:      creds,
		sync:       application.NewSyncService(manager, client, timetables, nil, logger),
		schedule:   application.NewScheduleService(timetables, nil, logger),
	}
	a.restoreSession(ctx)
	return a, nil
}

func (a *app) close() {
	if err := a.pool.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

// restoreSession resumes the stored credential, if any, so commands work
// without re-entering a password. Absence is not an error.
func (a *app) restoreSession(ctx context.Context) {
	cred, err := a.creds.Active(ctx)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			a.logger.Warn("stored credential unusable", "error", err)
		}
		return
	}
	school := timetable.School{Name: a.cfg.SchoolName, URL: cred.URL}
	a.manager.Restore(timetable.User{
		ID:       cred.UserID,
		Username: cred.Username,
		School:   school,
		Type:     timetable.UserType(cred.UserType),
		Organization: timetable.Organization{
			OrgID:  cred.OrgID,
			School: school,
			Name:   cred.OrgName,
		},
	}, cred.AppKey)
}

func (a *app) listSchools(ctx context.Context, args []string) error {
	var filter string
	if len(args) > 0 {
		filter = strings.ToLower(strings.Join(args, " "))
	}

	schools, err := a.client.Schools(ctx)
	if err != nil {
		return err
	}
	for _, school := range schools {
		if filter != "" && !strings.Contains(strings.ToLower(school.Name), filter) {
			continue
		}
		fmt.Printf("%s\t%s\n", school.Name, school.URL)
	}
	return nil
}

func (a *app) selectSchool(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("school requires a name")
	}
	name := strings.Join(args, " ")

	schools, err := a.client.Schools(ctx)
	if err != nil {
		return err
	}
	for _, school := range schools {
		if strings.EqualFold(school.Name, name) {
			if a.cfg, err = config.SetSchool(a.configPath, a.cfg, school.Name, school.URL); err != nil {
				return err
			}
			fmt.Printf("selected %s (%s)\n", school.Name, school.URL)
			return nil
		}
	}
	return fmt.Errorf("no school named %q in the directory", name)
}

func (a *app) login(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	userType := flags.String("type", "student", "account type: student, guardian or staff")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("login requires a username")
	}
	if a.cfg.SchoolURL == "" {
		return errors.New("no school selected; run the school command first")
	}

	kind, err := parseUserType(*userType)
	if err != nil {
		return err
	}
	username := flags.Arg(0)
	password, err := readPassword()
	if err != nil {
		return err
	}

	user, err := a.manager.Login(ctx, session.Credentials{
		School:         timetable.School{Name: a.cfg.SchoolName, URL: a.cfg.SchoolURL},
		Identification: username,
		Verification:   password,
		UserType:       kind,
	})
	if err != nil {
		return err
	}

	appKey, _ := a.manager.AppKey()
	if _, err := a.creds.Save(ctx, credstore.Credential{
		Username: username,
		AppKey:   appKey,
		UserID:   user.ID,
		UserType: int(kind),
		URL:      a.cfg.SchoolURL,
		OrgID:    user.Organization.OrgID,
		OrgName:  user.Organization.Name,
	}); err != nil {
		return err
	}

	fmt.Printf("logged in as %s (%s)\n", user.Username, user.Organization.Name)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if cred, err := a.creds.Active(ctx); err == nil {
		if err := a.creds.Delete(ctx, cred.ID); err != nil {
			return err
		}
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	a.manager.Logout()
	fmt.Println("logged out")
	return nil
}

func (a *app) refresh(ctx context.Context) error {
	report, err := a.sync.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cached %d lessons (%d subjects, %d occasions)\n", report.Lessons, report.Subjects, report.Occasions)
	for _, skipped := range report.Skipped {
		a.logger.Warn("record skipped", "occasion", skipped.Record.GUID, "error", skipped.Err)
	}
	return nil
}

func (a *app) point(ctx context.Context, which string) error {
	var (
		view application.LessonView
		ok   bool
		err  error
	)
	switch which {
	case "now":
		view, ok, err = a.schedule.Current(ctx)
	case "next":
		view, ok, err = a.schedule.Next(ctx)
	default:
		view, ok, err = a.schedule.Previous(ctx)
	}
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no lesson")
		return nil
	}
	printLesson(view)
	return nil
}

func (a *app) today(ctx context.Context) error {
	views, err := a.schedule.Today(ctx)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("no lessons today")
		return nil
	}
	for _, view := range views {
		printLesson(view)
	}
	return nil
}

func (a *app) week(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("week requires a week number")
	}
	week, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid week number %q", args[0])
	}

	var weekday *time.Weekday
	if len(args) > 1 {
		day, err := parseWeekday(args[1])
		if err != nil {
			return err
		}
		weekday = &day
	}

	views, err := a.schedule.Week(ctx, week, weekday)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Printf("no cached lessons for week %d\n", week)
		return nil
	}
	for _, view := range views {
		printLesson(view)
	}
	return nil
}

// daemon refreshes on the configured cron schedule until the context is
// cancelled. The first refresh runs immediately so a fresh start is never
// stuck waiting for the schedule.
func (a *app) daemon(ctx context.Context) error {
	if _, err := a.sync.Refresh(ctx); err != nil {
		a.logger.Error("initial refresh failed", "error", err, "error_kind", application.ErrorKind(err))
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(a.cfg.RefreshSchedule, func() {
		if _, err := a.sync.Refresh(ctx); err != nil {
			a.logger.Error("scheduled refresh failed", "error", err, "error_kind", application.ErrorKind(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshSchedule, err)
	}

	scheduler.Start()
	a.logger.Info("daemon running", "schedule", a.cfg.RefreshSchedule)
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}

func printLesson(view application.LessonView) {
	location := view.Location
	if location == "" {
		location = "-"
	}
	fmt.Printf("%s  %s-%s  %s  %s\n",
		view.Start.Format("Mon 2006-01-02"),
		view.Start.Format("15:04"),
		view.End.Format("15:04"),
		view.Subject,
		location)
}

func parseUserType(value string) (timetable.UserType, error) {
	switch strings.ToLower(value) {
	case "student":
		return timetable.UserTypeStudent, nil
	case "guardian":
		return timetable.UserTypeGuardian, nil
	case "staff":
		return timetable.UserTypeStaff, nil
	default:
		return 0, fmt.Errorf("unknown account type %q", value)
	}
}

func parseWeekday(value string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
		"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
		"sun": time.Sunday,
	}
	if len(value) >= 3 {
		if day, ok := days[strings.ToLower(value[:3])]; ok {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", value)
}

// readPassword prompts without echoing when stdin is a terminal. Piped
// input falls back to a plain line read so scripted logins keep working.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if len(raw) == 0 {
			return "", errors.New("empty password")
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
