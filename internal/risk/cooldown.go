package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tier_bot/internal/models"
)

var (
	ErrSignalCooldown = errors.New("signal cooldown active")
	ErrLossCooldown   = errors.New("loss cooldown active")
)

// LossScope область действия кулдауна после убытка.
type LossScope string

const (
	LossScopeKey    LossScope = "key"
	LossScopeGlobal LossScope = "global"
)

func ParseLossScope(s string) (LossScope, error) {
	switch LossScope(s) {
	case "", LossScopeKey:
		return LossScopeKey, nil
	case LossScopeGlobal:
		return LossScopeGlobal, nil
	}
	return "", fmt.Errorf("unknown loss cooldown scope %q", s)
}

type signalKey struct {
	models.Key
	Side models.Side
}

// Governor кулдауны на вход. MarkSignal/MarkLoss единственные мутаторы.
type Governor struct {
	mu sync.Mutex

	signalCooldown time.Duration
	lossCooldown   time.Duration
	scope          LossScope

	lastSignal map[signalKey]time.Time
	lastLoss   map[models.Key]time.Time
	globalLoss time.Time
}

func NewGovernor(signalCooldown, lossCooldown time.Duration, scope LossScope) *Governor {
	if scope == "" {
		scope = LossScopeKey
	}
	return &Governor{
		signalCooldown: signalCooldown,
		lossCooldown:   lossCooldown,
		scope:          scope,
		lastSignal:     map[signalKey]time.Time{},
		lastLoss:       map[models.Key]time.Time{},
	}
}

// CheckSignal nil если вход разрешён, иначе ErrSignalCooldown/ErrLossCooldown с остатком.
func (g *Governor) CheckSignal(key models.Key, side models.Side, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.lastSignal[signalKey{Key: key, Side: side}]; ok {
		if left := g.signalCooldown - now.Sub(t); left > 0 {
			return fmt.Errorf("%w: %s %s %s left", ErrSignalCooldown, key, side, left.Round(time.Second))
		}
	}

	lossAt, ok := g.lastLoss[key]
	if g.scope == LossScopeGlobal {
		lossAt, ok = g.globalLoss, !g.globalLoss.IsZero()
	}
	if ok {
		if left := g.lossCooldown - now.Sub(lossAt); left > 0 {
			return fmt.Errorf("%w: %s %s left", ErrLossCooldown, key, left.Round(time.Second))
		}
	}
	return nil
}

func (g *Governor) SignalAllowed(key models.Key, side models.Side, now time.Time) bool {
	return g.CheckSignal(key, side, now) == nil
}

// MarkSignal вызывается один раз на каждое успешное открытие.
func (g *Governor) MarkSignal(key models.Key, side models.Side, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSignal[signalKey{Key: key, Side: side}] = now
}

// MarkLoss вызывается один раз на каждое закрытие с net < 0.
func (g *Governor) MarkLoss(key models.Key, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastLoss[key] = now
	if now.After(g.globalLoss) {
		g.globalLoss = now
	}
}
