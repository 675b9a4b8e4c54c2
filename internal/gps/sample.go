// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sample is a single position reading. It is treated as immutable: every
// new reading replaces the previous one as a whole.
type Sample struct {
	Latitude         float64 // decimal degrees
	Longitude        float64 // decimal degrees
	CapturedAtMillis int64   // milliseconds since the Unix epoch, UTC
}

// NewSample builds a Sample from a capture time.
func NewSample(lat, lon float64, capturedAt time.Time) Sample {
	return Sample{Latitude: lat, Longitude: lon, CapturedAtMillis: capturedAt.UnixMilli()}
}

// CapturedAt returns the capture time in UTC.
func (s Sample) CapturedAt() time.Time {
	return time.UnixMilli(s.CapturedAtMillis).UTC()
}

func (s Sample) String() string {
	return fmt.Sprintf("lat=%.6f lon=%.6f at=%s", s.Latitude, s.Longitude, s.CapturedAt().Format(time.RFC3339))
}

// wireSample is the JSON object exchanged with the submission endpoint and
// the network fix topic.
type wireSample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"` // raw epoch millis, no timezone conversion
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSample{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Timestamp: s.CapturedAtMillis,
	})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Sample{Latitude: w.Latitude, Longitude: w.Longitude, CapturedAtMillis: w.Timestamp}
	return nil
}
