package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type CloseSource interface {
	RecentCloses(ctx context.Context, symbol, timeframe string, count int) ([]float64, error)
}

// Warmuper проверяет до старта цикла, что по каждому символу хватает свечей для RSI.
type Warmuper struct {
	feed CloseSource
	log  *zap.Logger

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewWarmuper(feed CloseSource, log *zap.Logger) *Warmuper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warmuper{
		feed: feed,
		log:  log,
		sem:  make(chan struct{}, 4),
	}
}

// Report символы с достаточной историей и проблемные (ошибка или мало свечей).
type Report struct {
	Ready   []string
	Missing map[string]string
}

// Warmup need минимальное число закрытий (period+1). Ошибки не фатальны:
// символ без истории просто не даст сигнала, выходы по нему работают.
func (w *Warmuper) Warmup(ctx context.Context, symbols []string, timeframe string, history, need int) Report {
	rep := Report{Missing: map[string]string{}}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, sym := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()

			closes, err := w.feed.RecentCloses(ctx, sym, timeframe, history)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Missing[sym] = err.Error()
				w.log.Warn("warmup: no candles", zap.String("symbol", sym), zap.Error(err))
			case len(closes) < need:
				rep.Missing[sym] = "not enough candles"
				w.log.Warn("warmup: not enough candles",
					zap.String("symbol", sym),
					zap.Int("closes", len(closes)),
					zap.Int("need", need),
				)
			default:
				rep.Ready = append(rep.Ready, sym)
			}
		}()
	}
	wg.Wait()
	return rep
}
