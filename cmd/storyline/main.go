package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eringen/storyline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "repair":
		err = runRepair()
	case "reindex":
		err = runReindex()
	case "new":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, `Usage: storyline new "<title>"`)
			os.Exit(1)
		}
		err = runNew(os.Args[2])
	case "version":
		fmt.Printf("storyline %s\n", storyline.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`storyline - a blogging backend that keeps its stories in plain text files

Usage:
  storyline <command> [arguments]

Commands:
  serve          Start the HTTP API
  repair         Resolve posts left in both published/ and drafts/
  reindex        Rebuild the search index from the post files
  new <title>    Create a draft post
  version        Print the storyline version
  help           Show this help message

Configuration is read from the environment (SITE_URL, CONTENT_DIR,
DATABASE_PATH, REDIS_ADDR, API_TOKEN, LOG_LEVEL, ...).`)
}

// setup loads the configuration and logger shared by every command.
func setup() (storyline.SiteConfig, *zap.Logger, error) {
	cfg := storyline.LoadConfig()
	log, err := storyline.NewLogger(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runServe() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := storyline.New(cfg, log)
	defer app.Close()
	return app.Start(ctx)
}

// initApp opens every backend without serving, for one-shot commands.
func initApp(ctx context.Context) (*storyline.App, *zap.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	app := storyline.New(cfg, log, storyline.WithoutScheduler())
	if err := app.Init(ctx); err != nil {
		app.Close()
		return nil, nil, err
	}
	return app, log, nil
}

func runRepair() error {
	ctx := context.Background()
	app, log, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer app.Close()

	fixed, err := app.Blog.Repair(ctx)
	if err != nil {
		return err
	}
	if len(fixed) == 0 {
		fmt.Println("Nothing to repair.")
		return nil
	}
	for _, id := range fixed {
		fmt.Printf("  repaired %s\n", id)
	}
	return nil
}

func runReindex() error {
	ctx := context.Background()
	app, log, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer app.Close()

	n, err := app.Blog.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d published posts.\n", n)
	return nil
}
