// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"sync"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

type event struct {
	kind   string // fix, enabled, disabled
	sample gps.Sample
	source Kind
}

// recordingSink collects every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingSink) OnFix(s gps.Sample) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "fix", sample: s})
	r.mu.Unlock()
}

func (r *recordingSink) OnProviderEnabled(k Kind) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "enabled", source: k})
	r.mu.Unlock()
}

func (r *recordingSink) OnProviderDisabled(k Kind) {
	r.mu.Lock()
	r.events = append(r.events, event{kind: "disabled", source: k})
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recordingSink) fixes() []gps.Sample {
	var out []gps.Sample
	for _, e := range r.snapshot() {
		if e.kind == "fix" {
			out = append(out, e.sample)
		}
	}
	return out
}

func (r *recordingSink) count(kind string, source Kind) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.kind == kind && e.source == source {
			n++
		}
	}
	return n
}

// fakeBackend hands its sink to the test so events can be injected.
type fakeBackend struct {
	kind    Kind
	enabled bool
	subErr  error

	mu           sync.Mutex
	sink         EventSink
	req          Request
	subscribes   int
	unsubscribes int
}

func (f *fakeBackend) Kind() Kind    { return f.kind }
func (f *fakeBackend) Enabled() bool { return f.enabled }

func (f *fakeBackend) Subscribe(req Request, sink EventSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.sink = sink
	f.req = req
	f.subscribes++
	return nil
}

func (f *fakeBackend) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes++
}

// emit delivers through the sink captured at Subscribe, even after
// Unsubscribe, like a late callback from a real provider.
func (f *fakeBackend) emit(s gps.Sample) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.OnFix(s)
	}
}

func (f *fakeBackend) counts() (subscribes, unsubscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribes
}
