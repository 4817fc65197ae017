package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/config"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/state"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

// SamplerFactory builds the sampler for a set of settings.
type SamplerFactory func(config.Settings) (telemetry.Sampler, error)

// generation pairs settings with the sampler built from them. A cycle loads
// one generation and uses it throughout.
type generation struct {
	settings config.Settings
	sampler  telemetry.Sampler
}

// Poller samples a metrics source on a fixed interval, publishes every
// result to its state store and evaluates alert thresholds.
type Poller struct {
	factory     SamplerFactory
	clock       Clock
	log         logger.Logger
	alertBuffer int

	current atomic.Pointer[generation]
	setMu   sync.Mutex

	// writeMu serialises publishing: store write, alert evaluation and
	// event delivery of one cycle never interleave with another's.
	writeMu    sync.Mutex
	alertState *alert.State
	store      *state.Store

	updates chan state.Snapshot
	alerts  chan alert.Event
	refresh chan struct{}
	retune  chan time.Duration

	wg sync.WaitGroup
}

// New validates settings and builds the initial sampler.
func New(settings config.Settings, factory SamplerFactory, opts ...Option) (*Poller, error) {
	errFactory := errors.New()

	if factory == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "sampler factory is required")
	}

	p := &Poller{
		factory:     factory,
		clock:       realClock{},
		log:         logger.Nop(),
		alertBuffer: defaultAlertBuffer,
		alertState:  alert.NewState(),
		store:       state.New(),
		updates:     make(chan state.Snapshot, 1),
		refresh:     make(chan struct{}, 1),
		retune:      make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.alerts = make(chan alert.Event, p.alertBuffer)

	gen, err := p.build(settings)
	if err != nil {
		return nil, err
	}
	p.current.Store(gen)

	return p, nil
}

func (p *Poller) build(settings config.Settings) (*generation, error) {
	errFactory := errors.New()

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	smp, err := p.factory(settings)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if smp == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "no sampler for source "+settings.Source)
	}

	return &generation{settings: settings, sampler: smp}, nil
}

// Run performs one cycle immediately and then one per tick until ctx is
// cancelled. Every cycle runs in its own goroutine so refresh, retune and
// cancellation are served while a sample is in flight. Ticks are not read
// while a tick cycle runs. Run waits for all cycles before returning.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.current.Load().settings.Interval
	ticker := p.clock.Ticker(interval)
	defer func() {
		ticker.Stop()
	}()

	p.log.Info().
		Str("source", p.current.Load().settings.Source).
		Dur("interval", interval).
		Msg("Starting poller")

	var (
		ticks    <-chan time.Time
		tickDone chan struct{}
	)
	startTick := func() {
		ticks = nil
		tickDone = make(chan struct{})
		p.spawn(ctx, tickDone)
	}
	startTick()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.log.Info().Msg("Poller stopped")

			return nil
		case <-p.refresh:
			p.spawn(ctx, nil)
		case d := <-p.retune:
			ticker.Stop()
			ticker = p.clock.Ticker(d)
			if tickDone == nil {
				ticks = ticker.Chan()
			}
			p.log.Info().Dur("interval", d).Msg("Poll interval changed")
		case <-tickDone:
			tickDone = nil
			ticks = ticker.Chan()
		case <-ticks:
			startTick()
		}
	}
}

// spawn runs one cycle tracked by the wait group, closing done after it.
func (p *Poller) spawn(ctx context.Context, done chan struct{}) {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		if done != nil {
			defer close(done)
		}

		p.Cycle(ctx)
	}()
}

// Refresh requests an immediate cycle without touching the ticker.
// Requests made while one is pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Cycle samples once and publishes the result. It reports false when ctx
// was cancelled before or during sampling, in which case nothing is
// published.
func (p *Poller) Cycle(ctx context.Context) (telemetry.Record, bool) {
	if ctx.Err() != nil {
		return telemetry.Record{}, false
	}

	gen := p.current.Load()
	rec, err := gen.sampler.Sample(ctx)
	if ctx.Err() != nil {
		return telemetry.Record{}, false
	}
	if rec.IsZero() {
		rec = telemetry.Failed(p.clock.Now(), telemetry.StatusOf(err))
	}
	if err != nil {
		p.log.Debug().
			Str("status", rec.Status().String()).
			Str("error_code", string(errors.CodeOf(err))).
			Err(err).
			Msg("Sample degraded")
	}

	p.publish(rec, gen.settings.Alerts, err)

	return rec, true
}

func (p *Poller) publish(rec telemetry.Record, cfg alert.Config, sampleErr error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	snap, tr := p.store.Write(rec)
	events := alert.Evaluate(rec, cfg, p.alertState)

	p.logTransition(tr, sampleErr)
	p.sendUpdate(snap)
	for _, ev := range events {
		p.sendAlert(ev)
	}
}

func (p *Poller) logTransition(tr state.Transition, sampleErr error) {
	if !tr.Changed {
		return
	}

	if tr.To == telemetry.Connected {
		if tr.Initial {
			p.log.Info().Msg("Source connected")
		} else {
			p.log.Info().Str("from", tr.From.String()).Msg("Source recovered")
		}

		return
	}

	ev := p.log.Warn().Str("status", tr.To.String())
	if sampleErr != nil {
		ev = ev.Str("error_code", string(errors.CodeOf(sampleErr))).Err(sampleErr)
	}
	ev.Msg("Source degraded")
}

// sendUpdate replaces any unconsumed snapshot with snap.
func (p *Poller) sendUpdate(snap state.Snapshot) {
	for {
		select {
		case p.updates <- snap:
			return
		default:
		}

		select {
		case <-p.updates:
		default:
		}
	}
}

func (p *Poller) sendAlert(ev alert.Event) {
	select {
	case p.alerts <- ev:
	default:
		p.log.Warn().Str("key", ev.Key).Msg("Alert queue full, dropping alert")
	}
}

// ApplySettings validates settings, builds their sampler and swaps both in
// at once. On error the current settings stay in effect.
func (p *Poller) ApplySettings(settings config.Settings) error {
	p.setMu.Lock()
	defer p.setMu.Unlock()

	return p.apply(settings)
}

// Update applies raw overrides to the current settings.
func (p *Poller) Update(o config.Overrides) error {
	p.setMu.Lock()
	defer p.setMu.Unlock()

	next, err := p.current.Load().settings.Apply(o)
	if err != nil {
		return err
	}

	return p.apply(next)
}

func (p *Poller) apply(settings config.Settings) error {
	gen, err := p.build(settings)
	if err != nil {
		p.log.Warn().Str("error_code", string(errors.CodeOf(err))).Err(err).Msg("Rejected settings")

		return err
	}

	prev := p.current.Swap(gen)
	if prev.settings.Interval != settings.Interval {
		p.sendRetune(settings.Interval)
	}

	p.log.Info().
		Str("source", settings.Source).
		Dur("interval", settings.Interval).
		Int("thresholds", len(settings.Alerts.Thresholds)).
		Msg("Settings applied")

	return nil
}

func (p *Poller) sendRetune(d time.Duration) {
	for {
		select {
		case p.retune <- d:
			return
		default:
		}

		select {
		case <-p.retune:
		default:
		}
	}
}

// Settings returns the settings currently in effect.
func (p *Poller) Settings() config.Settings {
	return p.current.Load().settings
}

// Read returns the latest published snapshot.
func (p *Poller) Read() state.Snapshot {
	return p.store.Read()
}

// Updates delivers the latest snapshot after every cycle. Only the most
// recent unconsumed snapshot is kept.
func (p *Poller) Updates() <-chan state.Snapshot {
	return p.updates
}

// Alerts delivers fired alerts in order. Alerts are dropped while the
// buffer is full.
func (p *Poller) Alerts() <-chan alert.Event {
	return p.alerts
}
