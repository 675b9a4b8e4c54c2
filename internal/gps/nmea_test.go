// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNMEA(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Sample
		wantErr error
		anyErr  bool
	}{
		{
			name: "valid RMC",
			line: "$GPRMC,123519.00,A,4730.000,N,01903.000,E,022.4,084.4,141123,003.1,W*46\r\n",
			want: Sample{Latitude: 47.5, Longitude: 19.05, CapturedAtMillis: 1699965319000},
		},
		{
			name: "southern hemisphere",
			line: "$GPRMC,123519.00,A,3351.000,S,15112.000,E,000.0,000.0,010124,,*27",
			want: Sample{Latitude: -33.85, Longitude: 151.2, CapturedAtMillis: 1704112519000},
		},
		{
			name:    "void RMC",
			line:    "$GPRMC,123520.50,V,4730.000,N,01903.000,E,022.4,084.4,141123,003.1,W*5E",
			wantErr: ErrNotAFix,
		},
		{
			name:    "other sentence type",
			line:    "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
			wantErr: ErrNotAFix,
		},
		{
			name:    "not a sentence",
			line:    "garbage",
			wantErr: ErrNotAFix,
		},
		{
			name:   "bad checksum",
			line:   "$GPRMC,123519.00,A,4730.000,N,01903.000,E,022.4,084.4,141123,003.1,W*00",
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNMEA(tt.line)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotAFix)
			default:
				require.NoError(t, err)
				assert.InDelta(t, tt.want.Latitude, got.Latitude, 1e-9)
				assert.InDelta(t, tt.want.Longitude, got.Longitude, 1e-9)
				assert.Equal(t, tt.want.CapturedAtMillis, got.CapturedAtMillis)
			}
		})
	}
}
