package service

import (
	"sync/atomic"
	"time"
)

// State состояние движка для health-эндпоинтов.
type State struct {
	ready     atomic.Bool
	startedAt time.Time
	live      atomic.Bool

	wsConnected   atomic.Bool
	lastTickUnix  atomic.Int64 // unix seconds
	openPositions atomic.Int64
	tickFaults    atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetLive(v bool) { s.live.Store(v) }
func (s *State) Mode() string {
	if s.live.Load() {
		return "LIVE"
	}
	return "PAPER"
}

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetOpenPositions(n int) { s.openPositions.Store(int64(n)) }
func (s *State) OpenPositions() int     { return int(s.openPositions.Load()) }

// TickFault счётчик упавших тиков (recover на границе тика).
func (s *State) TickFault()        { s.tickFaults.Add(1) }
func (s *State) TickFaults() int64 { return s.tickFaults.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
