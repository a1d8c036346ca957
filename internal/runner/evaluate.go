package runner

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"tier_bot/internal/execution"
	"tier_bot/internal/exchange"
	"tier_bot/internal/metrics"
	"tier_bot/internal/models"
	"tier_bot/internal/position"
	"tier_bot/internal/risk"
	"tier_bot/internal/strategy"
)

// evaluateSymbol сначала выходы по открытым позициям, затем сигнал и входы.
func (r *Runner) evaluateSymbol(ctx context.Context, symbol string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "runner.evaluateSymbol")
	span.SetTag("symbol", symbol)
	defer span.Finish()

	log := r.log.With(zap.String("symbol", symbol))
	tf := r.cfg.Engine.Timeframe

	closes, err := r.feed.RecentCloses(ctx, symbol, tf, r.cfg.Engine.History)
	var price float64
	if err != nil {
		r.feedFailed(log, symbol, err)
		// без свечей входа не будет, но выходы проверить можно
		price, err = r.feed.LatestClose(ctx, symbol, tf)
		if err != nil {
			r.feedFailed(log, symbol, err)
			return
		}
	} else {
		price = closes[len(closes)-1]
	}

	if obs, ok := r.exec.(execution.PriceObserver); ok {
		obs.ObservePrice(symbol, price)
	}

	now := r.now()
	for _, ts := range r.cfg.Tiers {
		r.manage(ctx, log, models.Key{Symbol: symbol, Tier: ts.Name}, price, now)
	}

	if closes == nil {
		return
	}
	sig, reading, err := r.detector.Update(symbol, tf, closes)
	if err != nil {
		if errors.Is(err, strategy.ErrInsufficientData) {
			log.Debug("no signal this tick: not enough closes",
				zap.Int("closes", len(closes)),
				zap.Int("period", r.cfg.Signal.Period),
			)
			return
		}
		log.Warn("rsi failed", zap.Error(err))
		return
	}
	metrics.RSIValue.WithLabelValues(symbol).Set(reading.Value)
	if sig.Side == models.SideNone {
		return
	}

	metrics.Signals.WithLabelValues(symbol, string(sig.Side)).Inc()
	log.Info("signal", zap.String("side", string(sig.Side)), zap.Float64("rsi", sig.RSI), zap.Float64("price", price))

	inst, ok := r.instrument(symbol)
	if !ok {
		log.Error("no instrument metadata, entry skipped")
		return
	}
	for _, ts := range r.cfg.Tiers {
		if !ts.Enabled() {
			continue
		}
		r.enter(ctx, log, ts, inst, sig, price, now)
	}
}

func (r *Runner) feedFailed(log *zap.Logger, symbol string, err error) {
	op := "unknown"
	var fe *exchange.FeedError
	if errors.As(err, &fe) {
		op = fe.Op
	}
	metrics.FeedErrors.WithLabelValues(symbol, op).Inc()
	log.Warn("feed error, symbol skipped", zap.String("op", op), zap.Error(err))
}

// manage арминг + решение под блокировкой книги, ордер вне её, затем фиксация результата.
func (r *Runner) manage(ctx context.Context, log *zap.Logger, key models.Key, price float64, now time.Time) {
	var (
		arming   position.Arming
		decision position.Decision
		snap     position.Position
	)
	err := r.book.Do(key, func(p *position.Position) error {
		arming, decision = p.Evaluate(price, now, r.rules)
		snap = *p
		return nil
	})
	if errors.Is(err, position.ErrNotFound) {
		return
	}

	log = log.With(zap.String("tier", string(key.Tier)), zap.String("side", string(snap.Side)))
	if arming.Breakeven {
		log.Info("breakeven armed", zap.Float64("stop", snap.Stop))
	}
	if arming.TrailArmed || arming.TrailMoved {
		log.Debug("trailing stop", zap.Float64("anchor", snap.TrailAnchor), zap.Float64("stop", snap.TrailStop))
	}

	switch decision.Action {
	case position.TakePartial:
		r.takePartial(ctx, log, key, snap, decision, price, now)
	case position.CloseAll:
		r.closeAll(ctx, log, key, snap, decision, price, now)
	}
}

func (r *Runner) takePartial(ctx context.Context, log *zap.Logger, key models.Key, snap position.Position, d position.Decision, price float64, now time.Time) {
	if _, err := r.exec.Close(ctx, key.Symbol, snap.Side, d.Qty); err != nil {
		// позиция не меняется, повтор на следующем тике
		metrics.ExecutionErrors.WithLabelValues("partial").Inc()
		log.Error("partial close order failed", zap.Float64("qty", d.Qty), zap.Error(err))
		return
	}

	var (
		part    position.Partial
		updated position.Position
	)
	err := r.book.Do(key, func(p *position.Position) error {
		var err error
		part, err = p.ApplyPartial(d.Qty, price, r.rules)
		updated = *p
		return err
	})
	if err != nil {
		log.Error("apply partial failed", zap.Error(err))
		return
	}

	metrics.PartialCloses.WithLabelValues(string(key.Tier)).Inc()
	log.Info("partial take profit",
		zap.Float64("qty", part.Qty),
		zap.Float64("price", part.Price),
		zap.Float64("remaining", part.Remaining),
		zap.Float64("stop", part.NewStop),
	)
	r.notify(ctx, models.PositionPartiallyClosed{
		Symbol:       key.Symbol,
		Tier:         key.Tier,
		Side:         snap.Side,
		Qty:          part.Qty,
		Price:        part.Price,
		RemainingQty: part.Remaining,
		Gross:        part.Gross,
		NewStop:      part.NewStop,
		At:           now,
	})
	if err := r.journal.RecordPartial(ctx, updated, part); err != nil {
		log.Warn("journal partial failed", zap.Error(err))
	}
}

func (r *Runner) closeAll(ctx context.Context, log *zap.Logger, key models.Key, snap position.Position, d position.Decision, price float64, now time.Time) {
	failed := false
	if _, err := r.exec.Close(ctx, key.Symbol, snap.Side, d.Qty); err != nil {
		// закрытие всё равно фиксируем, иначе позиция зависнет; рассинхрон виден в событии и метрике
		failed = true
		metrics.ExecutionErrors.WithLabelValues("close").Inc()
		log.Error("close order failed, position closed locally", zap.String("reason", string(d.Reason)), zap.Error(err))
	}

	var out position.Outcome
	err := r.book.Do(key, func(p *position.Position) error {
		var err error
		out, err = p.Close(price, now, d.Reason, r.rules)
		return err
	})
	if err != nil {
		log.Error("close position failed", zap.Error(err))
		return
	}

	capital := r.acct.Record(out)
	if out.Loss() {
		r.governor.MarkLoss(key, now)
	}

	metrics.PositionsClosed.WithLabelValues(string(key.Tier), string(out.Reason)).Inc()
	metrics.NetPnL.Set(r.acct.Totals().Net)
	metrics.Capital.Set(capital)
	log.Info("position closed",
		zap.String("reason", string(out.Reason)),
		zap.Float64("exit", out.Exit),
		zap.Float64("gross", out.Gross),
		zap.Float64("fees", out.Fees),
		zap.Float64("net", out.Net),
		zap.Duration("held", out.Duration()),
	)

	r.notify(ctx, models.PositionClosed{
		Symbol:          key.Symbol,
		Tier:            key.Tier,
		Side:            out.Side,
		Reason:          out.Reason,
		Qty:             out.Qty,
		Entry:           out.Entry,
		Exit:            out.Exit,
		ReturnPct:       out.ReturnPct,
		Gross:           out.Gross,
		Fees:            out.Fees,
		PnL:             out.Net,
		DurationSec:     int64(out.Duration().Seconds()),
		Capital:         capital,
		ExecutionFailed: failed,
		At:              now,
	})
	if err := r.journal.RecordClose(ctx, out, failed); err != nil {
		log.Warn("journal close failed", zap.Error(err))
	}
}

// enter вход tier'а по сигналу. Любой отказ до ордера не оставляет следов.
func (r *Runner) enter(ctx context.Context, log *zap.Logger, ts models.TierSettings, inst models.Instrument, sig models.Signal, price float64, now time.Time) {
	key := models.Key{Symbol: sig.Symbol, Tier: ts.Name}
	log = log.With(zap.String("tier", string(ts.Name)), zap.String("side", string(sig.Side)))

	skip := func(reason string, err error) {
		metrics.EntriesSkipped.WithLabelValues(string(ts.Name), reason).Inc()
		log.Info("entry skipped", zap.String("reason", reason), zap.Error(err))
	}

	if r.book.Has(key) {
		skip("active", position.ErrPositionActive)
		return
	}
	if err := r.governor.CheckSignal(key, sig.Side, now); err != nil {
		reason := "signal_cooldown"
		if errors.Is(err, risk.ErrLossCooldown) {
			reason = "loss_cooldown"
		}
		skip(reason, err)
		return
	}

	tpPct, slPct := r.cfg.Brackets(ts)
	order, err := risk.Plan(ts, inst, sig.Side, price, tpPct, slPct)
	if err != nil {
		skip("sizing", err)
		return
	}

	if _, err := r.exec.Open(ctx, sig.Symbol, sig.Side, order.Qty); err != nil {
		metrics.ExecutionErrors.WithLabelValues("open").Inc()
		log.Error("open order failed", zap.Float64("qty", order.Qty), zap.Error(err))
		return
	}

	p := position.New(order, inst.QtyStep, now)
	opened := *p
	if err := r.book.Open(p); err != nil {
		log.Error("book rejected opened position", zap.Error(err))
		return
	}
	r.governor.MarkSignal(key, sig.Side, now)

	metrics.PositionsOpened.WithLabelValues(string(ts.Name), string(sig.Side)).Inc()
	log.Info("position opened",
		zap.Float64("qty", order.Qty),
		zap.Float64("entry", order.Entry),
		zap.Float64("tp", order.TP),
		zap.Float64("sl", order.SL),
	)
	r.notify(ctx, models.PositionOpened{
		Symbol: sig.Symbol,
		Tier:   ts.Name,
		Side:   sig.Side,
		Qty:    order.Qty,
		Entry:  order.Entry,
		TP:     order.TP,
		SL:     order.SL,
		RSI:    sig.RSI,
		At:     now,
	})
	if err := r.journal.RecordOpen(ctx, opened); err != nil {
		log.Warn("journal open failed", zap.Error(err))
	}
}
