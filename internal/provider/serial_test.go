// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"testing"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmcFirst  = "$GPRMC,123519.00,A,4730.000,N,01903.000,E,022.4,084.4,141123,003.1,W*46\r\n"
	rmcVoid   = "$GPRMC,123520.50,V,4730.000,N,01903.000,E,022.4,084.4,141123,003.1,W*5E\r\n"
	ggaLine   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"
	rmcSecond = "$GPRMC,123521.00,A,4730.060,N,01903.000,E,022.4,084.4,141123,003.1,W*4B\r\n"
)

// pipePort is a serial port whose receive side is fed by the test.
type pipePort struct {
	*io.PipeReader
}

func (pipePort) Write(p []byte) (int, error) { return len(p), nil }

func newPipeBackend(t *testing.T) (*SerialBackend, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	b := NewSerialBackend("/dev/ttyFAKE0", 9600)
	b.openPort = func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/ttyFAKE0", opts.PortName)
		assert.Equal(t, uint(9600), opts.BaudRate)
		return pipePort{pr}, nil
	}
	b.statPort = func(string) (os.FileInfo, error) { return nil, nil }
	t.Cleanup(func() {
		b.Unsubscribe()
		pw.Close()
	})
	return b, pw
}

func TestSerialBackendEnabled(t *testing.T) {
	b := NewSerialBackend("/dev/ttyFAKE0", 9600)
	b.statPort = func(string) (os.FileInfo, error) { return nil, fs.ErrNotExist }
	assert.False(t, b.Enabled())

	b.statPort = func(string) (os.FileInfo, error) { return nil, nil }
	assert.True(t, b.Enabled())
	assert.Equal(t, Satellite, b.Kind())
}

func TestSerialBackendDeliversFixes(t *testing.T) {
	b, pw := newPipeBackend(t)
	sink := &recordingSink{}
	require.NoError(t, b.Subscribe(Request{MinDisplacement: 1}, sink))

	for _, line := range []string{ggaLine, rmcVoid, "noise\r\n", rmcFirst, rmcSecond} {
		_, err := pw.Write([]byte(line))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(sink.fixes()) == 2 }, time.Second, 5*time.Millisecond)

	events := sink.snapshot()
	assert.Equal(t, "enabled", events[0].kind, "first valid fix reports the provider enabled")
	fixes := sink.fixes()
	assert.Equal(t, int64(1699965319000), fixes[0].CapturedAtMillis)
	assert.Equal(t, int64(1699965321000), fixes[1].CapturedAtMillis)
	assert.InDelta(t, 47.501, fixes[1].Latitude, 1e-9)
	assert.Equal(t, 1, sink.count("enabled", Satellite))
}

func TestSerialBackendThrottles(t *testing.T) {
	b, pw := newPipeBackend(t)
	sink := &recordingSink{}
	require.NoError(t, b.Subscribe(Request{MinInterval: time.Minute}, sink))

	for _, line := range []string{rmcFirst, rmcSecond} {
		_, err := pw.Write([]byte(line))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(sink.fixes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(sink.fixes()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSerialBackendReadErrorDisables(t *testing.T) {
	b, pw := newPipeBackend(t)
	sink := &recordingSink{}
	require.NoError(t, b.Subscribe(Request{}, sink))

	pw.CloseWithError(errors.New("device unplugged"))

	require.Eventually(t, func() bool { return sink.count("disabled", Satellite) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSerialBackendUnsubscribeIsQuiet(t *testing.T) {
	b, _ := newPipeBackend(t)
	sink := &recordingSink{}
	require.NoError(t, b.Subscribe(Request{}, sink))

	b.Unsubscribe()
	b.Unsubscribe()

	assert.Never(t, func() bool { return sink.count("disabled", Satellite) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSerialBackendPermissionDenied(t *testing.T) {
	b := NewSerialBackend("/dev/ttyFAKE0", 9600)
	b.openPort = func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, &fs.PathError{Op: "open", Path: "/dev/ttyFAKE0", Err: fs.ErrPermission}
	}

	err := b.Subscribe(Request{}, &recordingSink{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSerialBackendOpenError(t *testing.T) {
	b := NewSerialBackend("/dev/ttyFAKE0", 9600)
	b.openPort = func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}

	err := b.Subscribe(Request{}, &recordingSink{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}
