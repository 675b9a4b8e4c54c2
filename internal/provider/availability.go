// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import "sync"

// Availability tracks the last reported State of each backend kind. It is
// purely reactive: it only changes when Set is called from provider events.
type Availability struct {
	mu     sync.RWMutex
	states map[Kind]State
}

func NewAvailability() *Availability {
	return &Availability{states: make(map[Kind]State)}
}

// Set records the state of one backend kind.
func (a *Availability) Set(k Kind, s State) {
	a.mu.Lock()
	a.states[k] = s
	a.mu.Unlock()
}

// State returns the last reported state of k, Unknown if never reported.
func (a *Availability) State(k Kind) State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.states[k]
}

// IsUsable is true iff at least one backend kind is Enabled.
func (a *Availability) IsUsable() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.states {
		if s == Enabled {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of all known states, keyed by kind name.
func (a *Availability) Snapshot() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.states))
	for k, s := range a.states {
		out[k.String()] = s.String()
	}
	return out
}
