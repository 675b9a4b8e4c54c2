// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package provider normalizes positioning backends into a single stream of
// fix and provider-state events.
package provider

import (
	"errors"
	"time"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// Kind identifies a logical positioning backend.
type Kind int

const (
	// Satellite is the high accuracy GNSS receiver.
	Satellite Kind = iota
	// Network is the lower accuracy network-assisted source.
	Network
)

func (k Kind) String() string {
	switch k {
	case Satellite:
		return "satellite"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// State is the enablement of one backend kind as last reported.
type State int

const (
	Unknown State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

var (
	// ErrPermissionDenied means the process lacks access to the backend.
	ErrPermissionDenied = errors.New("provider: permission denied")
	// ErrNoProviderAvailable means no backend is enabled.
	ErrNoProviderAvailable = errors.New("provider: no provider available")
)

// EventSink receives events from a backend. Calls may arrive on any
// goroutine.
type EventSink interface {
	OnFix(gps.Sample)
	OnProviderEnabled(Kind)
	OnProviderDisabled(Kind)
}

// Request holds the update filter passed to a backend on subscribe.
type Request struct {
	MinInterval     time.Duration
	MinDisplacement float64 // meters
}

// Backend is an external positioning source.
type Backend interface {
	Kind() Kind
	// Enabled reports whether the backend can currently deliver fixes.
	Enabled() bool
	// Subscribe starts delivering events to sink. It must return promptly.
	Subscribe(req Request, sink EventSink) error
	// Unsubscribe stops delivery. It is safe to call when not subscribed.
	Unsubscribe()
}
