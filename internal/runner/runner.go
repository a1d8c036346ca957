package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tier_bot/internal/execution"
	"tier_bot/internal/journal"
	"tier_bot/internal/metrics"
	"tier_bot/internal/models"
	"tier_bot/internal/modules/config"
	"tier_bot/internal/modules/health/service"
	"tier_bot/internal/notify"
	"tier_bot/internal/pnl"
	"tier_bot/internal/position"
	"tier_bot/internal/risk"
	"tier_bot/internal/strategy"
)

// PriceFeed источник цен.
type PriceFeed interface {
	RecentCloses(ctx context.Context, symbol, timeframe string, count int) ([]float64, error)
	LatestClose(ctx context.Context, symbol, timeframe string) (float64, error)
}

// InstrumentSource метаданные инструмента с биржи.
type InstrumentSource interface {
	GetInstrument(ctx context.Context, symbol string) (models.Instrument, error)
}

// Preparer исполнители, которым нужна подготовка до первого ордера (live).
type Preparer interface {
	Prepare(ctx context.Context, instruments []models.Instrument, leverage int) error
}

type Deps struct {
	Config     *config.Config
	Feed       PriceFeed
	Executor   execution.OrderExecutor
	Sink       notify.Sink
	Journal    journal.Journal
	Detector   *strategy.Detector
	Governor   *risk.Governor
	Book       *position.Book
	Accountant *pnl.Accountant
	State      *service.State
	Log        *zap.Logger
}

// Runner один проход (tick) по всем символам и tier'ам за интервал опроса.
type Runner struct {
	cfg      *config.Config
	rules    position.Rules
	feed     PriceFeed
	exec     execution.OrderExecutor
	sink     notify.Sink
	journal  journal.Journal
	detector *strategy.Detector
	governor *risk.Governor
	book     *position.Book
	acct     *pnl.Accountant
	state    *service.State
	log      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	instMu      sync.RWMutex
	instruments map[string]models.Instrument

	cancel context.CancelFunc
	done   chan struct{}
}

func New(d Deps) *Runner {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	j := d.Journal
	if j == nil {
		j = journal.Noop{}
	}
	state := d.State
	if state == nil {
		state = service.NewState()
	}
	return &Runner{
		cfg:         d.Config,
		rules:       d.Config.Rules(),
		feed:        d.Feed,
		exec:        d.Executor,
		sink:        d.Sink,
		journal:     j,
		detector:    d.Detector,
		governor:    d.Governor,
		book:        d.Book,
		acct:        d.Accountant,
		state:       state,
		log:         log,
		now:         time.Now,
		sleep:       sleepCtx,
		instruments: map[string]models.Instrument{},
	}
}

// LoadInstruments ручные ограничения из конфига, остальное с биржи.
// Без метаданных по любому символу цикл не стартует.
func (r *Runner) LoadInstruments(ctx context.Context, src InstrumentSource) ([]models.Instrument, error) {
	out := make([]models.Instrument, 0, len(r.cfg.Engine.Symbols))
	for _, symbol := range r.cfg.Engine.Symbols {
		inst, ok := r.cfg.InstrumentOverride(symbol)
		if !ok {
			if src == nil {
				return nil, fmt.Errorf("no instrument source for %s", symbol)
			}
			var err error
			inst, err = src.GetInstrument(ctx, symbol)
			if err != nil {
				return nil, errors.Wrapf(err, "load instrument %s", symbol)
			}
		}
		inst.Symbol = symbol
		out = append(out, inst)
	}

	r.instMu.Lock()
	for _, inst := range out {
		r.instruments[inst.Symbol] = inst
	}
	r.instMu.Unlock()

	if p, ok := r.exec.(Preparer); ok {
		if err := p.Prepare(ctx, out, r.cfg.Exchange.Leverage); err != nil {
			return nil, errors.Wrap(err, "prepare executor")
		}
	}
	return out, nil
}

func (r *Runner) instrument(symbol string) (models.Instrument, bool) {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	inst, ok := r.instruments[symbol]
	return inst, ok
}

// Started баннер при запуске.
func (r *Runner) Started() models.EngineStarted {
	tiers := make([]models.TierSettings, len(r.cfg.Tiers))
	copy(tiers, r.cfg.Tiers)
	symbols := append([]string(nil), r.cfg.Engine.Symbols...)
	sort.Strings(symbols)

	return models.EngineStarted{
		Live:           r.cfg.Exchange.Live,
		Exchange:       r.cfg.Exchange.Name,
		Symbols:        symbols,
		Timeframe:      r.cfg.Engine.Timeframe,
		RSIPeriod:      r.cfg.Signal.Period,
		BuyThreshold:   r.cfg.Signal.BuyThreshold,
		SellThreshold:  r.cfg.Signal.SellThreshold,
		TakeProfitPct:  r.cfg.Exits.TakeProfitPct,
		StopLossPct:    r.cfg.Exits.StopLossPct,
		Tiers:          tiers,
		InitialCapital: r.cfg.Engine.InitialCapital,
	}
}

// Start запускает цикл в отдельной горутине.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	r.state.SetLive(r.cfg.Exchange.Live)
	r.state.SetReady(true)
	r.notify(ctx, r.Started())

	go func() {
		defer close(r.done)
		r.Run(ctx)
	}()
}

// Stop ждёт завершения текущего тика.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.state.SetReady(false)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run тикает до отмены ctx. Начатый тик всегда доходит до конца.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("engine loop started",
		zap.Strings("symbols", r.cfg.Engine.Symbols),
		zap.Duration("poll", r.cfg.Engine.PollInterval),
	)
	for {
		if ctx.Err() != nil {
			r.log.Info("engine loop stopped")
			return
		}

		if err := r.safeTick(context.WithoutCancel(ctx)); err != nil {
			r.log.Error("tick failed", zap.Error(err))
			r.sleep(ctx, r.cfg.Engine.FaultDelay)
			continue
		}
		r.sleep(ctx, r.cfg.Engine.PollInterval)
	}
}

func (r *Runner) safeTick(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in tick: %v\n%s", p, debug.Stack())
		}
		if err != nil {
			r.state.TickFault()
			metrics.TicksTotal.WithLabelValues("fault").Inc()
		}
	}()
	return r.Tick(ctx)
}

// Tick один проход по всем символам. Каждый символ обрабатывается одной горутиной,
// поэтому все ключи (symbol, tier) символа меняются последовательно.
func (r *Runner) Tick(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "runner.Tick")
	defer span.Finish()

	start := r.now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	limit := r.cfg.Engine.Parallelism
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, symbol := range r.cfg.Engine.Symbols {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic evaluating %s: %v\n%s", symbol, p, debug.Stack())
				}
			}()
			r.evaluateSymbol(ctx, symbol)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetTag("error", true)
		return err
	}

	now := r.now()
	if sum, ok := r.acct.Roll(now); ok {
		sum.Open = r.book.Len()
		r.notify(ctx, sum)
	}

	open := r.book.Len()
	metrics.OpenPositions.Set(float64(open))
	r.state.SetOpenPositions(open)
	r.state.TouchTick(now)
	metrics.TicksTotal.WithLabelValues("ok").Inc()
	return nil
}

func (r *Runner) notify(ctx context.Context, ev models.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Notify(ctx, ev); err != nil {
		r.log.Warn("notify failed", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
