package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"codeberg.org/mutker/sensorpoll/internal/alertlog"
	"codeberg.org/mutker/sensorpoll/internal/config"
	"codeberg.org/mutker/sensorpoll/internal/dispatch"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/gpu"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/pid"
	"codeberg.org/mutker/sensorpoll/internal/poller"
	"codeberg.org/mutker/sensorpoll/internal/sampler"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"codeberg.org/mutker/sensorpoll/internal/view"
)

const appName = "sensorpoll"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Str("file", cfg.File).Msg("Config loaded")

	if err := run(cfg); err != nil {
		logError(err, "Exiting")
		os.Exit(1)
	}

	logger.Info().Msg("Exiting...")
}

func run(cfg *config.Config) error {
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	pidFile := pid.New(cfg.PIDDir, appName)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logError(err, "Failed to remove PID file")
		}
	}()

	log := logger.Default()

	samplers := &samplerFactory{log: log}
	defer samplers.Close()

	dispatchers := dispatch.Multi{dispatch.NewLog(log)}

	if cfg.AlertLog != "" {
		journal, err := alertlog.New(cfg.AlertLog, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logError(err, "Failed to close alert journal")
			}
		}()
		dispatchers = append(dispatchers, dispatch.NewJournal(journal))
	}

	if cfg.NATSURL != "" {
		nc, err := dispatch.ConnectNATS(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Close(); err != nil {
				logError(err, "Failed to drain NATS connection")
			}
		}()
		dispatchers = append(dispatchers, nc)
	}

	p, err := poller.New(settings, samplers.Build, poller.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel, p)

	// Dispatch outlives the poller so alerts from its last cycle are
	// delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dispatch.Run(dispatchCtx, p, view.LayoutFor(settings.Source), dispatchers)
	}()

	err = p.Run(ctx)
	cancel()
	stopDispatch()
	wg.Wait()

	return err
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, p *poller.Poller) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				logger.Info().Msg("Refresh requested")
				p.Refresh()
			case syscall.SIGHUP:
				reload(p)
			default:
				logger.Info().Msg("Received termination signal.")
				cancel()
				return
			}
		}
	}
}

// reload re-reads the configuration and applies it. The source is fixed
// for the lifetime of the process.
func reload(p *poller.Poller) {
	errFactory := errors.New()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logError(err, "Reload failed")
		return
	}

	settings, err := cfg.Settings()
	if err != nil {
		logError(err, "Reload failed")
		return
	}

	if current := p.Settings().Source; settings.Source != current {
		logError(errFactory.WithMessage(errors.ErrInvalidConfig, "source cannot change from "+current+" to "+settings.Source),
			"Reload failed")
		return
	}

	if err := p.ApplySettings(settings); err != nil {
		logError(err, "Reload failed")
		return
	}

	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLogLevel(level)
	}
	logger.Info().Str("file", cfg.File).Msg("Configuration reloaded")
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

// samplerFactory builds samplers for the poller. The GPU sampler holds NVML
// and is created once, then reused across settings changes.
type samplerFactory struct {
	log logger.Logger

	mu  sync.Mutex
	gpu *gpu.Sampler
}

func (f *samplerFactory) Build(s config.Settings) (telemetry.Sampler, error) {
	errFactory := errors.New()

	switch s.Source {
	case config.SourceHTTP:
		h, err := sampler.NewHTTP(sampler.HTTPConfig{
			Endpoint: s.Endpoint,
			Path:     s.Path,
			Timeout:  s.Timeout,
			Fields:   s.Fields,
		})
		if err != nil {
			return nil, err
		}

		return h, nil
	case config.SourceHost:
		return sampler.NewHost(s.DiskPath), nil
	case config.SourceGPU:
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.gpu == nil {
			g, err := gpu.New(f.log.With("gpu"))
			if err != nil {
				return nil, err
			}
			f.gpu = g
		}

		return f.gpu, nil
	default:
		return nil, errFactory.WithData(errors.ErrInvalidSource, s.Source)
	}
}

func (f *samplerFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gpu == nil {
		return
	}
	if err := f.gpu.Close(); err != nil {
		logError(err, "Failed to shut down NVML")
	}
	f.gpu = nil
}
