package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-learnhub-client/internal/config"
	"github.com/jrsteele09/go-learnhub-client/learnhub"
	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sessionFile       = "session.json"
	storageWatchEvery = time.Second
)

func main() {
	quiet := flag.Bool("q", false, "do not print the banner")
	flag.Usage = usage
	flag.Parse()

	if err := run(flag.Args(), *quiet); err != nil {
		log.Error().Err(err).Msg("learnctl failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: learnctl [-q] <command> [args]

commands:
  login <user_id> <password>   start a session
  logout                       forget the session
  status                       show the stored session
  me                           show the logged in user
  withdraw                     deactivate the account
  generate <user_id>           generate a quiz for one user (admin)
  generate-all                 generate quizzes for every user (admin)
  demo                         run against an in-process fake backend
`)
}

func run(args []string, quiet bool) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	// A missing .env file is not an error; the environment still applies.
	_ = godotenv.Load()
	c := config.New()
	setupLogging(c.GetLogLevel())
	if !quiet {
		displayAppname(c.GetAppName())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args[0] == "demo" {
		return runDemo(ctx, c)
	}

	medium, err := storage.NewFileMedium(filepath.Join(c.GetDataFolder(), sessionFile))
	if err != nil {
		return fmt.Errorf("opening session storage: %w", err)
	}
	// Another learnctl process may log out while a job is being tracked.
	go medium.Watch(ctx, storageWatchEvery)

	view := medium.Open()
	defer view.Close()
	app, err := learnhub.New(c, view)
	if err != nil {
		return err
	}
	defer app.Close()

	return dispatch(ctx, app, args)
}

func setupLogging(level string) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
