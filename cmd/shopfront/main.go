package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/five82/shopfront/internal/app"
	"github.com/five82/shopfront/internal/config"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(stdout, stderr).RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "shopfront: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) && exit.ExitCode() != 0 {
			return exit.ExitCode()
		}
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "shopfront",
		Usage:     "terminal storefront with an offline-tolerant cart",
		Writer:    stdout,
		ErrWriter: stderr,
		// Exit codes are mapped in run; the default handler calls os.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default ~/.config/shopfront/config.toml)"},
			&cli.StringFlag{Name: "data-dir", Usage: "override storage.dir"},
			&cli.StringFlag{Name: "api", Usage: "override api.base_url"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
			&cli.BoolFlag{Name: "offline", Usage: "start disconnected; queue every change"},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{Name: "tui", Usage: "open the storefront (default)", Action: runTUI},
			productsCommand(),
			cartCommand(),
			syncCommand(),
			pendingCommand(),
			logsCommand(),
			mockServerCommand(),
		},
	}
}

// loadConfig resolves the config file and environment, then applies the
// global flags on top.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if v := c.String("api"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := c.String("data-dir"); v != "" {
		dir, err := config.ExpandPath(v)
		if err != nil {
			return config.Config{}, fmt.Errorf("data-dir: %w", err)
		}
		cfg.Storage.Dir = dir
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

func runTUI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return app.Run(c.Context, app.Options{Config: cfg, Offline: c.Bool("offline")})
}

// withRuntime builds a runtime for one-shot commands, probes the backend
// once, and hands it to fn.
func withRuntime(c *cli.Context, fn func(rt *app.Runtime) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := app.Build(cfg, app.BuildOptions{Offline: c.Bool("offline"), LogFallback: c.App.ErrWriter})
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.CheckConnectivity(c.Context) {
		fmt.Fprintln(c.App.ErrWriter, "offline: using saved cart, changes are queued")
	}
	return fn(rt)
}
