// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// connectTimeout bounds the initial broker connect; paho keeps retrying in
// the background after that.
const connectTimeout = 5 * time.Second

func connectMQTT(broker string, opts *mqtt.ClientOptions) (mqtt.Client, error) {
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.WithField("component", "mqtt").Warnf("broker not reachable yet at %s, retrying in background", broker)
		return client, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	log.WithField("component", "mqtt").Infof("connected to MQTT broker at %s", broker)
	return client, nil
}
