package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzhttp"
	"github.com/urfave/cli/v3"

	"github.com/templateschile/kalifinder-search/pkg/api"
	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/config"
	"github.com/templateschile/kalifinder-search/pkg/engine"
	"github.com/templateschile/kalifinder-search/pkg/history"
	"github.com/templateschile/kalifinder-search/pkg/log"
	"github.com/templateschile/kalifinder-search/pkg/realtime"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the widget API server",
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"))
		},
	}
}

// serve runs the widget server, restarting it whenever the configuration
// changes on disk or SIGHUP arrives.
func serve(ctx context.Context, configPath string) error {
	logger := log.ForComponent("serve")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
	}

	for {
		reload, err := runServer(ctx, configPath, sigCh, watcher, logger)
		if err != nil {
			return err
		}
		if !reload {
			return nil
		}
		logger.Infof("restarting with new configuration")
	}
}

// runServer brings up one engine plus API server from the config file and
// blocks until shutdown or a reload trigger. It returns true when the
// caller should rebuild everything from the (possibly changed) config.
func runServer(ctx context.Context, configPath string, sigCh <-chan os.Signal, watcher *fsnotify.Watcher, logger *log.Logger) (bool, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return false, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("invalid config: %w", err)
	}

	client := backend.NewClient(cfg.APIBase, cfg.StoreURL, cfg.RequestTimeout.Duration)
	hub := realtime.NewHub(16)

	recents, err := history.Open(cfg.HistoryDB)
	if err != nil {
		logger.Warnf("opening history database: %v (history disabled)", err)
		recents = nil
	}
	defer func() {
		if recents != nil {
			if err := recents.Close(); err != nil {
				logger.Warnf("closing history database: %v", err)
			}
		}
	}()

	eng := engine.New(engine.Config{
		PageSize:          cfg.PageSize,
		InitialFetchLimit: cfg.InitialFacetLimit,
		DefaultMaxPrice:   cfg.DefaultMaxPrice,
		QueryDebounce:     cfg.QueryDebounce.Duration,
		FilterDebounce:    cfg.FilterDebounce.Duration,
		FallbackSort:      cfg.FallbackSort,
		Messages:          engine.MessageConfig{NoResultsFormat: cfg.NoResultsMessage},
	}, client, hub, recents)
	defer eng.Close()

	mux := http.NewServeMux()
	api.NewServer(eng, hub).RegisterRoutes(mux)
	handler := gzhttp.GzipHandler(api.CorsMiddleware(mux))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("widget API listening on http://%s (store: %s)", cfg.ListenAddr, cfg.StoreURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	eng.Start()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("server shutdown: %v", err)
		}
	}

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return false, nil

		case err := <-errCh:
			return false, fmt.Errorf("server failed: %w", err)

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("received SIGHUP, reloading configuration")
				shutdown()
				return true, nil
			default:
				fmt.Println("\nShutting down...")
				shutdown()
				return false, nil
			}

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !configChanged(event) {
				continue
			}
			logger.Infof("config file changed: %s (event: %s)", event.Name, event.Op)

			// Editors often replace the file atomically; re-add it to the
			// watcher and give the write time to settle.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-watch config file: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			shutdown()
			return true, nil

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}

func configChanged(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
