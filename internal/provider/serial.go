// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// SerialBackend reads NMEA sentences from a GNSS receiver on a serial port.
// It is the Satellite backend.
type SerialBackend struct {
	options serial.OpenOptions

	openPort func(serial.OpenOptions) (io.ReadWriteCloser, error)
	statPort func(string) (os.FileInfo, error)

	mu   sync.Mutex
	port io.ReadWriteCloser
	done chan struct{}
}

// NewSerialBackend configures the receiver port with 8N1 framing, which is
// what NMEA receivers speak.
func NewSerialBackend(portName string, baudRate int) *SerialBackend {
	return &SerialBackend{
		options: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              uint(baudRate),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		openPort: serial.Open,
		statPort: os.Stat,
	}
}

func (b *SerialBackend) Kind() Kind { return Satellite }

// Enabled reports whether the receiver device node is present.
func (b *SerialBackend) Enabled() bool {
	_, err := b.statPort(b.options.PortName)
	return err == nil
}

func (b *SerialBackend) Subscribe(req Request, sink EventSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked()

	port, err := b.openPort(b.options)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("open serial port %s: %w", b.options.PortName, err)
	}
	log.WithField("component", "serial").Infof("GPS serial port opened on %s at %d baud",
		b.options.PortName, b.options.BaudRate)

	done := make(chan struct{})
	b.port = port
	b.done = done
	go b.readLoop(port, done, newThrottledSink(req, sink))
	return nil
}

func (b *SerialBackend) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *SerialBackend) closeLocked() {
	if b.port == nil {
		return
	}
	close(b.done)
	if err := b.port.Close(); err != nil {
		log.WithField("component", "serial").Warnf("close %s: %v", b.options.PortName, err)
	}
	b.port = nil
	b.done = nil
}

func (b *SerialBackend) readLoop(port io.Reader, done <-chan struct{}, sink EventSink) {
	logger := log.WithField("component", "serial")
	reader := bufio.NewReader(port)
	haveFix := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-done:
				// closed by Unsubscribe
				return
			default:
			}
			logger.Warnf("GPS read error: %v", err)
			sink.OnProviderDisabled(Satellite)
			return
		}

		sample, err := gps.ParseNMEA(line)
		if err != nil {
			// noisy receivers emit partial sentences and sentence types we do not use
			if !errors.Is(err, gps.ErrNotAFix) {
				logger.Debugf("NMEA parse error: %v (line: %q)", err, line)
			}
			continue
		}

		if !haveFix {
			haveFix = true
			sink.OnProviderEnabled(Satellite)
		}
		sink.OnFix(sample)
	}
}
