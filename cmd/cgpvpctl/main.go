// Command cgpvpctl is a maintenance CLI for the cgpvp news service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/app"
	browseropts "github.com/cgpvp/cgpvp/internal/browser"
	"github.com/cgpvp/cgpvp/internal/config"
	"github.com/cgpvp/cgpvp/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "scrape":
		err = withApp(ctx, false, func(a *app.App) error {
			return a.Scrape(ctx, arg(2))
		})
	case "login":
		err = withApp(ctx, false, func(a *app.App) error {
			return a.TriggerLogin(ctx)
		})
	case "logout":
		err = withApp(ctx, false, func(a *app.App) error {
			return a.TriggerLogout()
		})
	case "migrate":
		err = withApp(ctx, true, func(a *app.App) error {
			fmt.Println("Schema is up to date")
			return nil
		})
	case "last-run":
		err = withApp(ctx, false, func(a *app.App) error {
			return runLastRun(a, arg(2))
		})
	case "bot-test":
		err = runBotTest()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: cgpvpctl open <config|cache>")
			os.Exit(1)
		}
		err = runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "cgpvpctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: cgpvpctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scrape [source]   Run one ingestion now (all sources by default)")
	fmt.Println("  login             Log in to Facebook in a visible browser and store cookies")
	fmt.Println("  logout            Clear stored Facebook cookies")
	fmt.Println("  migrate           Create or update the database schema")
	fmt.Println("  last-run [source] Print the newest cached run record")
	fmt.Println("  bot-test          Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  open config       Open config file in default editor")
	fmt.Println("  open cache        Open cache directory in file explorer")
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

// withApp loads config, builds the app and hands it to fn.
func withApp(ctx context.Context, migrate bool, fn func(*app.App) error) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if migrate {
		cfg.Database.Migrate = true
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func load() (*config.Config, *zap.SugaredLogger, error) {
	boot, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := app.LoadConfig(boot.Sugar())
	if err != nil {
		return nil, nil, err
	}

	// The CLI is interactive, always use the console encoder
	cfg.Log.Development = true
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runLastRun(a *app.App, source string) error {
	rec, path, err := a.LastRun(source)
	if err != nil {
		return fmt.Errorf("%w (set scraping.cache_runs = true to keep run snapshots)", err)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s\n", path, out)
	return nil
}

func runBotTest() error {
	fmt.Println("Opening bot.sannysoft.com with the scraper's browser options...")

	opts := browseropts.Options(false, config.DefaultUserAgent) // non-headless so you can see it

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate("https://bot.sannysoft.com"),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()
	return nil
}

func runOpen(target string) error {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
		if err == nil {
			err = os.MkdirAll(path, 0755)
		}
	default:
		return fmt.Errorf("unknown target: %s", target)
	}

	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	return browser.OpenFile(path)
}
