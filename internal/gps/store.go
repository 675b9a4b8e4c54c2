// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "sync"

// Store holds the latest known Sample. Put is last-write-wins: there is no
// timestamp ordering check, so a stale sample delivered late overwrites a
// newer one.
type Store struct {
	mu     sync.RWMutex
	latest Sample
	have   bool
}

// Put replaces the stored sample unconditionally.
func (s *Store) Put(sample Sample) {
	s.mu.Lock()
	s.latest = sample
	s.have = true
	s.mu.Unlock()
}

// Get returns the current sample and whether one has been stored yet.
func (s *Store) Get() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}
