// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/config"
	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// formatFix renders one fix topic payload as a console line.
func formatFix(topic string, payload []byte) (string, error) {
	var s gps.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[GPS ] %-16s lat=%.6f lon=%.6f time=%s",
		topic, s.Latitude, s.Longitude, s.CapturedAt().Format("2006-01-02 15:04:05.000Z")), nil
}

// printFixes returns a message handler writing every fix to out.
func printFixes(out io.Writer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatFix(msg.Topic(), msg.Payload())
		if err != nil {
			log.WithField("component", "console").Warnf("gps unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, line)
	}
}

// RunConsoleMQTT prints the fixes published on the network fix topic and
// the relay topic until Ctrl+C.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not initialized")
	}
	if cfg.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required for the console")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")
	client, err := connectMQTT(cfg.MQTTBroker, opts)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	topics := map[string]byte{cfg.TopicNetworkFix: 0}
	if cfg.TopicRelayOutput != "" {
		topics[cfg.TopicRelayOutput] = 0
	}
	token := client.SubscribeMultiple(topics, printFixes(os.Stdout))
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.WithField("component", "console").Infof("subscribed to %d fix topic(s)", len(topics))

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.WithField("component", "console").Info("shutting down")
	return nil
}
