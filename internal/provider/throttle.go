// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const earthRadiusMeters = 6371008.8

// Distance returns the great-circle distance between two samples in meters.
func Distance(a, b gps.Sample) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// throttledSink drops fixes that arrive sooner or closer than the request
// allows. The interval is measured on arrival, not on capture timestamps, so
// a fix captured earlier than the previous one still gets through.
// Provider state events pass through untouched.
type throttledSink struct {
	req  Request
	next EventSink
	now  func() time.Time

	mu       sync.Mutex
	last     gps.Sample
	lastSeen time.Time
	have     bool
}

func newThrottledSink(req Request, next EventSink) *throttledSink {
	return &throttledSink{req: req, next: next, now: time.Now}
}

func (t *throttledSink) accept(s gps.Sample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.have {
		if now.Sub(t.lastSeen) < t.req.MinInterval {
			return false
		}
		if Distance(t.last, s) < t.req.MinDisplacement {
			return false
		}
	}
	t.last = s
	t.lastSeen = now
	t.have = true
	return true
}

func (t *throttledSink) OnFix(s gps.Sample) {
	if t.accept(s) {
		t.next.OnFix(s)
	}
}

func (t *throttledSink) OnProviderEnabled(k Kind)  { t.next.OnProviderEnabled(k) }
func (t *throttledSink) OnProviderDisabled(k Kind) { t.next.OnProviderDisabled(k) }
