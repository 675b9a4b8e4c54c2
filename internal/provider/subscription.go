// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// Subscription picks one backend at Start and forwards its events to a
// single sink. The higher accuracy backend is preferred; the network
// backend is used only when the satellite one is disabled. The choice is
// not re-evaluated until the next Start.
type Subscription struct {
	sink     EventSink
	backends map[Kind]Backend

	// AccessGranted, when set, is asked before every Start. It is how the
	// embedding application reports whether location access was granted.
	AccessGranted func() bool

	mu     sync.Mutex
	active Backend
	gate   *gatedSink

	// activeKind mirrors active without the lock so sinks may read it from
	// inside a callback; -1 when idle.
	activeKind atomic.Int32
}

// NewSubscription builds a subscription over the given backends. Nil
// backends are ignored.
func NewSubscription(sink EventSink, backends ...Backend) *Subscription {
	s := &Subscription{sink: sink, backends: make(map[Kind]Backend)}
	s.activeKind.Store(-1)
	for _, b := range backends {
		if b != nil {
			s.backends[b.Kind()] = b
		}
	}
	return s
}

// Start begins receiving updates from the preferred enabled backend. A
// running subscription is replaced.
func (s *Subscription) Start(req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if s.AccessGranted != nil && !s.AccessGranted() {
		return ErrPermissionDenied
	}

	var chosen Backend
	for _, k := range []Kind{Satellite, Network} {
		b, ok := s.backends[k]
		if !ok {
			continue
		}
		enabled := b.Enabled()
		if enabled {
			s.sink.OnProviderEnabled(k)
		} else {
			s.sink.OnProviderDisabled(k)
		}
		if enabled && chosen == nil {
			chosen = b
		}
	}
	if chosen == nil {
		return ErrNoProviderAvailable
	}

	gate := &gatedSink{next: s.sink}
	gate.open.Store(true)
	s.activeKind.Store(int32(chosen.Kind()))
	if err := chosen.Subscribe(req, gate); err != nil {
		gate.open.Store(false)
		s.activeKind.Store(-1)
		return fmt.Errorf("subscribe %s: %w", chosen.Kind(), err)
	}

	s.active = chosen
	s.gate = gate
	log.WithField("component", "provider").Infof("subscribed to %s backend (interval=%s displacement=%.1fm)",
		chosen.Kind(), req.MinInterval, req.MinDisplacement)
	return nil
}

// Stop unsubscribes. It is idempotent and safe without a prior Start.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Subscription) stopLocked() {
	if s.active == nil {
		return
	}
	// close the gate first so late callbacks from the backend are dropped
	s.gate.open.Store(false)
	s.activeKind.Store(-1)
	s.active.Unsubscribe()
	log.WithField("component", "provider").Infof("unsubscribed from %s backend", s.active.Kind())
	s.active = nil
	s.gate = nil
}

// Active returns the kind of the subscribed backend, if any. It does not
// block and may be called from an EventSink.
func (s *Subscription) Active() (Kind, bool) {
	k := s.activeKind.Load()
	if k < 0 {
		return 0, false
	}
	return Kind(k), true
}

type gatedSink struct {
	next EventSink
	open atomic.Bool
}

func (g *gatedSink) OnFix(sample gps.Sample) {
	if g.open.Load() {
		g.next.OnFix(sample)
	}
}

func (g *gatedSink) OnProviderEnabled(k Kind) {
	if g.open.Load() {
		g.next.OnProviderEnabled(k)
	}
}

func (g *gatedSink) OnProviderDisabled(k Kind) {
	if g.open.Load() {
		g.next.OnProviderDisabled(k)
	}
}
