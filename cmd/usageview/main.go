package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/usageview/usageview/internal/config"
	"github.com/usageview/usageview/internal/db"
	"github.com/usageview/usageview/internal/server"
	"github.com/usageview/usageview/internal/tracker"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "track":
			runTrack(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("usageview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`usageview %s - desktop app usage tracking

Aggregates foreground-window sessions into per-day usage totals
in SQLite and serves stats, an allow-list registry, and a
query chatbot over HTTP. The track subcommand runs the desktop
agent that samples the foreground window and reports sessions.

Usage:
  usageview [flags]          Start the server (default command)
  usageview serve [flags]    Start the server (explicit)
  usageview track [flags]    Run the tracking agent
  usageview version          Show version information
  usageview help             Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8000)

Track flags:
  -server string      Usage server base URL
  -user string        User ID to report activity as
  -interval duration  Window sampling interval (default 2s)
  -stdin              Read window samples from stdin (app<TAB>title lines)

Environment variables:
  USAGEVIEW_DATA_DIR     Data directory (database, config)
  USAGEVIEW_API_KEY      API key for the chatbot endpoint
  USAGEVIEW_SERVER_URL   Server base URL for the tracker
  USAGEVIEW_USER_ID      User ID for the tracker

Data is stored in ~/.usageview/ by default.
`, version)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("usageview", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: usageview [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}

	// Open runs schema setup and legacy migration; a failure
	// here must keep the server down rather than serve a
	// half-migrated store.
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, database,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	fmt.Printf("usageview %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runTrack(args []string) {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: usageview track [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterTrackFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var sample tracker.SampleFunc
	if useStdin(fs) {
		sample = tracker.LineSampler(os.Stdin)
	} else {
		sample, err = tracker.PlatformSampler()
		if err != nil {
			log.Fatalf(
				"%v (use -stdin to feed samples manually)", err,
			)
		}
	}

	client := tracker.NewClient(cfg.ServerURL, cfg.UserID)
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	if !client.Healthy(ctx) {
		log.Printf("warning: %s not reachable, reporting will retry",
			cfg.ServerURL)
	}

	fmt.Printf("tracking as %s, reporting to %s every %s\n",
		cfg.UserID, cfg.ServerURL, cfg.PollInterval)

	t := tracker.New(
		sample, client, cfg.PollInterval, cfg.RefreshInterval,
	)
	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("tracker error: %v", err)
	}
}

func useStdin(fs *flag.FlagSet) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "stdin" && f.Value.String() == "true" {
			set = true
		}
	})
	return set
}
