// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/provider"
)

// relaySink publishes every fix it receives to an MQTT topic in the same
// JSON form the submission endpoint accepts.
type relaySink struct {
	client mqtt.Client
	topic  string
}

func (s *relaySink) OnFix(sample gps.Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		log.WithField("component", "relay").Errorf("GPS JSON marshal error: %v", err)
		return
	}

	token := s.client.Publish(s.topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.WithField("component", "relay").Warnf("GPS publish error: %v", token.Error())
		return
	}
	log.WithField("component", "relay").Debugf("published GPS fix: %s", sample)
}

func (s *relaySink) OnProviderEnabled(k provider.Kind) {
	log.WithField("component", "relay").Infof("%s provider enabled", k)
}

func (s *relaySink) OnProviderDisabled(k provider.Kind) {
	log.WithField("component", "relay").Warnf("%s provider disabled", k)
}

// RunFixRelay reads the local GNSS receiver and republishes its fixes on
// MQTT so other trackers can consume them as a network-assisted source.
func RunFixRelay() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not initialized")
	}
	if cfg.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required for the fix relay")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-relay").
		SetAutoReconnect(true)
	client, err := connectMQTT(cfg.MQTTBroker, opts)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	sub := provider.NewSubscription(
		&relaySink{client: client, topic: cfg.TopicRelayOutput},
		provider.NewSerialBackend(cfg.GPSSerialPort, cfg.GPSBaudRate),
	)
	if err := sub.Start(provider.Request{
		MinInterval:     cfg.MinInterval(),
		MinDisplacement: cfg.MinDisplacementM,
	}); err != nil {
		return fmt.Errorf("start GPS relay: %w", err)
	}
	defer sub.Stop()
	log.WithField("component", "relay").Infof("relaying %s to MQTT topic %s", cfg.GPSSerialPort, cfg.TopicRelayOutput)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.WithField("component", "relay").Info("shutting down")
	return nil
}
