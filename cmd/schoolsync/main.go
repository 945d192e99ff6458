// Command schoolsync keeps a local copy of a SchoolSoft timetable and answers
// schedule queries from it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: schoolsync [-config path] <command> [arguments]

commands:
  schools [filter]     list schools from the public directory
  school <name>        select the school future logins use
  login <username>     log in and store the credential
  logout               drop the stored credential and session
  refresh              fetch the timetable and replace the local cache
  now                  show the lesson in progress
  next                 show the next lesson
  prev                 show the last finished lesson
  today                list today's lessons
  week <number> [day]  list lessons for a school week
  daemon               run scheduled refreshes until interrupted
`

func main() {
	configPath := flag.String("config", "schoolsync.yaml", "path to the configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "schoolsync: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, args []string) error {
	app, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer app.close()

	command, rest := args[0], args[1:]
	switch command {
	case "schools":
		return app.listSchools(ctx, rest)
	case "school":
		return app.selectSchool(ctx, rest)
	case "login":
		return app.login(ctx, rest)
	case "logout":
		return app.logout(ctx)
	case "refresh":
		return app.refresh(ctx)
	case "now":
		return app.point(ctx, "now")
	case "next":
		return app.point(ctx, "next")
	case "prev":
		return app.point(ctx, "prev")
	case "today":
		return app.today(ctx)
	case "week":
		return app.week(ctx, rest)
	case "daemon":
		return app.daemon(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
