// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker ties the provider stream, the fix store and the sender
// together behind the operations the embedding application calls.
package tracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/metrics"
	"github.com/relabs-tech/gps_tracker/internal/provider"
	"github.com/relabs-tech/gps_tracker/internal/sender"
)

// State of the sampling state machine.
type State int

const (
	Idle State = iota
	Sampling
)

func (s State) String() string {
	if s == Sampling {
		return "sampling"
	}
	return "idle"
}

// SamplingConfig is the update filter requested from the provider.
type SamplingConfig struct {
	MinInterval     time.Duration
	MinDisplacement float64 // meters
}

// Sender delivers one sample. *sender.Sender implements it.
type Sender interface {
	Send(ctx context.Context, sample gps.Sample, endpoint sender.Endpoint) sender.Result
}

// Tracker is the caller-facing orchestrator. It is the EventSink of its own
// provider subscription.
type Tracker struct {
	store        gps.Store
	availability *provider.Availability
	subscription *provider.Subscription
	sender       Sender

	// Metrics is optional.
	Metrics *metrics.Collector

	mu    sync.Mutex
	state State

	watchMu  sync.Mutex
	watchers map[int]chan gps.Sample
	nextID   int
}

// New builds an idle Tracker over the given backends.
func New(s Sender, backends ...provider.Backend) *Tracker {
	t := &Tracker{
		availability: provider.NewAvailability(),
		sender:       s,
		watchers:     make(map[int]chan gps.Sample),
	}
	t.subscription = provider.NewSubscription(t, backends...)
	return t
}

// SetAccessCheck installs the embedding application's location access
// check, consulted on every StartSampling.
func (t *Tracker) SetAccessCheck(granted func() bool) {
	t.mu.Lock()
	t.subscription.AccessGranted = granted
	t.mu.Unlock()
}

// StartSampling subscribes to the preferred enabled backend. On failure the
// tracker is Idle and the error is provider.ErrPermissionDenied,
// provider.ErrNoProviderAvailable or a wrapped backend error. Calling it
// while Sampling restarts the subscription with the new config.
func (t *Tracker) StartSampling(cfg SamplingConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.subscription.Start(provider.Request{
		MinInterval:     cfg.MinInterval,
		MinDisplacement: cfg.MinDisplacement,
	})
	if err != nil {
		t.state = Idle
		log.WithField("component", "tracker").Warnf("start sampling: %v", err)
		return err
	}
	t.state = Sampling
	return nil
}

// StopSampling unsubscribes. It always succeeds and tolerates repeated calls.
func (t *Tracker) StopSampling() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.subscription.Stop()
	t.state = Idle
}

// State reports whether the tracker is Idle or Sampling.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SendCurrentFix delivers the latest sample to endpoint on a separate
// goroutine. The returned channel receives exactly one Result. It is valid
// in either state; an empty store yields NoFixAvailable without any
// network activity. Overlapping sends are not ordered.
func (t *Tracker) SendCurrentFix(ctx context.Context, endpoint sender.Endpoint) <-chan sender.Result {
	out := make(chan sender.Result, 1)

	sample, ok := t.store.Get()
	if !ok {
		t.Metrics.ObserveSend(sender.NoFixAvailable.String(), 0)
		out <- sender.Result{Outcome: sender.NoFixAvailable}
		return out
	}

	go func() {
		start := time.Now()
		res := t.sender.Send(ctx, sample, endpoint)
		t.Metrics.ObserveSend(res.Outcome.String(), time.Since(start))
		out <- res
	}()
	return out
}

// Latest returns the most recent sample for display.
func (t *Tracker) Latest() (gps.Sample, bool) {
	return t.store.Get()
}

// IsUsable reports whether at least one backend is known to be enabled.
func (t *Tracker) IsUsable() bool {
	return t.availability.IsUsable()
}

// Availability exposes the per-backend state.
func (t *Tracker) Availability() *provider.Availability {
	return t.availability
}

// ActiveProvider returns the backend chosen by the last successful start.
func (t *Tracker) ActiveProvider() (provider.Kind, bool) {
	return t.subscription.Active()
}

// Watch returns a channel receiving every sample stored from now on. Slow
// watchers miss samples rather than block the provider. Call cancel to
// release it.
func (t *Tracker) Watch() (<-chan gps.Sample, func()) {
	ch := make(chan gps.Sample, 8)

	t.watchMu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = ch
	t.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.watchMu.Lock()
			delete(t.watchers, id)
			t.watchMu.Unlock()
			close(ch)
		})
	}
}

// OnFix implements provider.EventSink.
func (t *Tracker) OnFix(s gps.Sample) {
	t.store.Put(s)

	source := "unknown"
	if kind, ok := t.subscription.Active(); ok {
		source = kind.String()
	}
	t.Metrics.ObserveFix(source)
	log.WithField("component", "tracker").Debugf("fix from %s: %s", source, s)

	t.watchMu.Lock()
	for _, ch := range t.watchers {
		select {
		case ch <- s:
		default:
		}
	}
	t.watchMu.Unlock()
}

// OnProviderEnabled implements provider.EventSink.
func (t *Tracker) OnProviderEnabled(k provider.Kind) {
	t.availability.Set(k, provider.Enabled)
	t.Metrics.SetProviderEnabled(k.String(), true)
	log.WithField("component", "tracker").Infof("%s provider enabled", k)
}

// OnProviderDisabled implements provider.EventSink.
func (t *Tracker) OnProviderDisabled(k provider.Kind) {
	t.availability.Set(k, provider.Disabled)
	t.Metrics.SetProviderEnabled(k.String(), false)
	log.WithField("component", "tracker").Infof("%s provider disabled", k)
}
