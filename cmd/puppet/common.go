package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/puppet/pkg/choreo"
	"github.com/gwillem/puppet/pkg/logging"
	"github.com/gwillem/puppet/pkg/metrics"
	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/sequencer"
	"github.com/gwillem/puppet/pkg/servo"
)

var (
	headerStyle    = sequencer.HeaderStyle
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = sequencer.SuccessStyle
	errorStyle     = sequencer.ErrorStyle
	dimStyle       = sequencer.DimStyle
)

// session is everything a command needs to drive the puppet.
type session struct {
	cfg     *puppet.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	ctrl    *servo.Controller
	puppet  *puppet.Puppet
	store   *choreo.Store
	seq     *sequencer.Sequencer
}

func newLogger() *slog.Logger {
	return logging.New(opts.LogLevel, opts.LogFormat, os.Stderr)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func configPath() string {
	return cmp.Or(opts.Config, puppet.DefaultConfigFile)
}

// loadConfig reads the config file if there is one, then applies environment
// overrides and --dry-run.
func loadConfig(log *slog.Logger) (*puppet.Config, error) {
	path := configPath()
	cfg := puppet.DefaultConfig()
	if puppet.ConfigExistsAt(path) {
		c, err := puppet.LoadConfigFrom(path)
		if err != nil {
			return nil, err
		}
		cfg = c
		log.Debug("loaded configuration", "path", path)
	} else {
		log.Debug("no configuration file, using defaults", "path", path)
	}

	cfg.ApplyEnv()
	if opts.DryRun {
		cfg.Driver.Kind = puppet.DriverSim
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openController opens the configured driver and wraps it in a controller.
func openController(ctx context.Context, cfg *puppet.Config, log *slog.Logger, extra ...servo.Option) (*servo.Controller, error) {
	drv, err := puppet.OpenDriver(ctx, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("open %s driver: %w", cfg.Driver.Kind, err)
	}
	log.Info("servo driver ready", "kind", cfg.Driver.Kind, "channels", drv.Channels())

	options := append([]servo.Option{servo.WithStepInterval(cfg.Timing.StepInterval())}, extra...)
	return servo.NewController(drv, options...), nil
}

// openSession builds the full stack. The store is loaded best-effort: a broken
// definitions file leaves that namespace empty.
func openSession(ctx context.Context, handlers ...func(sequencer.Event)) (*session, error) {
	log := newLogger()

	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	ctrl, err := openController(ctx, cfg, log, servo.WithObserver(m.ObserveCommand))
	if err != nil {
		return nil, err
	}

	p, err := puppet.New(ctrl, cfg.Limbs,
		puppet.WithTiming(cfg.Timing.Timing()),
		puppet.WithLogger(log),
	)
	if err != nil {
		ctrl.Close()
		return nil, err
	}

	// The controller assumes every channel starts centered; make it true
	if err := p.ResetAll(ctx); err != nil {
		log.Warn("initial reset incomplete", "error", err)
	}

	store := choreo.NewStore()
	if err := store.LoadPosesFile(cfg.PosesFile); err != nil {
		log.Warn("poses unavailable", "error", err)
	}
	if err := store.LoadSequencesFile(cfg.SequencesFile); err != nil {
		log.Warn("sequences unavailable", "error", err)
	}
	log.Info("choreography loaded", "poses", store.NumPoses(), "sequences", store.NumSequences())

	seqOpts := []sequencer.Option{
		sequencer.WithLogger(log),
		sequencer.WithEventHandler(m.ObserveEvent),
	}
	for _, h := range handlers {
		seqOpts = append(seqOpts, sequencer.WithEventHandler(h))
	}

	return &session{
		cfg:     cfg,
		log:     log,
		metrics: m,
		ctrl:    ctrl,
		puppet:  p,
		store:   store,
		seq:     sequencer.New(p, store, seqOpts...),
	}, nil
}

// Close resets the puppet to a safe position and releases the driver. It
// runs even after an interrupt, so it does not use the command context.
func (s *session) Close() error {
	fmt.Println(dimStyle.Render("Resetting puppet to safe position..."))
	err := s.puppet.ResetAll(context.Background())
	if err != nil {
		s.log.Warn("final reset incomplete", "error", err)
	}
	return errors.Join(err, s.ctrl.Close())
}

func printLimbs(p *puppet.Puppet) {
	fmt.Println(dimStyle.Render("Servo channels:"))
	for _, l := range p.Limbs() {
		fmt.Printf("  %s:", l.Name())
		for _, j := range l.Joints() {
			ch, _ := l.Channel(j)
			fmt.Printf(" %s=%d", j, ch)
		}
		fmt.Println()
	}
}

// interrupted reports whether err is due to Ctrl+C rather than a failure.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
