// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNotAFix is returned by ParseNMEA for well-formed lines that do not
// carry a usable position (other sentence types, void RMC).
var ErrNotAFix = errors.New("gps: sentence carries no valid fix")

// ParseNMEA turns one NMEA line into a Sample. Only RMC sentences with
// validity "A" produce a fix; everything else yields ErrNotAFix or the
// parser's error.
func ParseNMEA(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	// NMEA sentences start with '$'
	if !strings.HasPrefix(line, "$") {
		return Sample{}, ErrNotAFix
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Sample{}, err
	}

	if sentence.DataType() != nmea.TypeRMC {
		return Sample{}, ErrNotAFix
	}
	return FromRMC(sentence.(nmea.RMC))
}

// FromRMC converts a recommended-minimum sentence. The capture time is the
// receiver's UTC date and time of the fix.
func FromRMC(m nmea.RMC) (Sample, error) {
	if m.Validity != nmea.ValidRMC {
		return Sample{}, ErrNotAFix
	}
	if !m.Date.Valid || !m.Time.Valid {
		return Sample{}, ErrNotAFix
	}

	// RMC carries a two digit year
	capturedAt := time.Date(
		2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second,
		m.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	)
	return NewSample(m.Latitude, m.Longitude, capturedAt), nil
}
