// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/metrics"
	"github.com/relabs-tech/gps_tracker/internal/provider"
	"github.com/relabs-tech/gps_tracker/internal/sender"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// RunTracker wires the positioning backends, the tracker and the web
// surface, starts sampling, and serves until SIGINT or SIGTERM.
func RunTracker() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not initialized")
	}

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	backends := []provider.Backend{provider.NewSerialBackend(cfg.GPSSerialPort, cfg.GPSBaudRate)}

	var mqttClient mqtt.Client
	if cfg.MQTTBroker != "" {
		network := provider.NewMQTTBackend(cfg.TopicNetworkFix)
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientID).
			SetAutoReconnect(true).
			SetConnectRetry(true).
			SetConnectionLostHandler(network.OnConnectionLost).
			SetOnConnectHandler(network.OnConnect)

		mqttClient, err = connectMQTT(cfg.MQTTBroker, opts)
		if err != nil {
			return err
		}
		network.SetClient(mqttClient)
		backends = append(backends, network)
	}

	connect, read, write := cfg.HTTPTimeouts()
	httpClient := sender.NewHTTPClient(sender.Timeouts{Connect: connect, Read: read, Write: write})

	t := tracker.New(sender.New(httpClient), backends...)
	t.Metrics = collector
	if cfg.AccessMarkerFile != "" {
		marker := cfg.AccessMarkerFile
		t.SetAccessCheck(func() bool {
			_, err := os.Stat(marker)
			return err == nil
		})
	}

	sampling := tracker.SamplingConfig{
		MinInterval:     cfg.MinInterval(),
		MinDisplacement: cfg.MinDisplacementM,
	}
	if err := t.StartSampling(sampling); err != nil {
		// not fatal: the backend may come up later and /api/start retries
		log.WithField("component", "app").Warnf("initial start sampling failed: %v", err)
	}

	web := &Web{
		Tracker:  t,
		Endpoint: sender.Endpoint{BaseURL: cfg.EndpointBaseURL},
		Sampling: sampling,
		Metrics:  collector,
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("component", "web").Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.StopSampling()
			return fmt.Errorf("web server: %w", err)
		}
	}

	log.WithField("component", "app").Info("shutting down")
	t.StopSampling()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithField("component", "web").Warnf("shutdown: %v", err)
	}
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
	return nil
}
