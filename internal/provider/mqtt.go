// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

// subscribeTimeout bounds how long Subscribe waits for the broker's SUBACK.
const subscribeTimeout = 5 * time.Second

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// mqttSubscriber is the part of mqtt.Client the backend needs.
type mqttSubscriber interface {
	IsConnectionOpen() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTBackend receives network-assisted fixes published as JSON on an MQTT
// topic. It is the Network backend. Connection loss and recovery are
// reported as provider disabled and enabled.
type MQTTBackend struct {
	topic string

	mu     sync.Mutex
	client mqttSubscriber
	sink   EventSink
}

func NewMQTTBackend(topic string) *MQTTBackend {
	return &MQTTBackend{topic: topic}
}

// SetClient attaches the broker connection. It is separate from the
// constructor because the client options need the backend's handlers.
func (b *MQTTBackend) SetClient(client mqtt.Client) {
	b.setClient(client)
}

func (b *MQTTBackend) setClient(client mqttSubscriber) {
	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
}

func (b *MQTTBackend) Kind() Kind { return Network }

func (b *MQTTBackend) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil && b.client.IsConnectionOpen()
}

func (b *MQTTBackend) Subscribe(req Request, sink EventSink) error {
	b.mu.Lock()
	client := b.client
	if client == nil {
		b.mu.Unlock()
		return errors.New("mqtt: no client attached")
	}
	// set before subscribing: retained messages may arrive before SUBACK
	b.sink = newThrottledSink(req, sink)
	b.mu.Unlock()

	if err := b.subscribe(client); err != nil {
		b.mu.Lock()
		b.sink = nil
		b.mu.Unlock()
		return err
	}
	log.WithField("component", "mqtt").Infof("subscribed to MQTT topic %s", b.topic)
	return nil
}

func (b *MQTTBackend) subscribe(client mqttSubscriber) error {
	token := client.Subscribe(b.topic, 1, b.handleMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timed out", b.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", b.topic, err)
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if code, ok := st.Result()[b.topic]; ok && code == subackFailure {
			return fmt.Errorf("%w: broker refused subscription to %s", ErrPermissionDenied, b.topic)
		}
	}
	return nil
}

func (b *MQTTBackend) Unsubscribe() {
	b.mu.Lock()
	client := b.client
	wasSubscribed := b.sink != nil
	b.sink = nil
	b.mu.Unlock()

	if !wasSubscribed || client == nil {
		return
	}
	token := client.Unsubscribe(b.topic)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		log.WithField("component", "mqtt").Warnf("unsubscribe %s: %v", b.topic, token.Error())
	}
}

func (b *MQTTBackend) currentSink() EventSink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sink
}

func (b *MQTTBackend) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	sink := b.currentSink()
	if sink == nil {
		return
	}
	var s gps.Sample
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		log.WithField("component", "mqtt").Warnf("fix payload unmarshal error on %s: %v", msg.Topic(), err)
		return
	}
	sink.OnFix(s)
}

// OnConnectionLost is an mqtt.ConnectionLostHandler.
func (b *MQTTBackend) OnConnectionLost(_ mqtt.Client, err error) {
	log.WithField("component", "mqtt").Warnf("connection lost: %v", err)
	if sink := b.currentSink(); sink != nil {
		sink.OnProviderDisabled(Network)
	}
}

// OnConnect is an mqtt.OnConnectHandler. It restores the topic subscription
// after a reconnect.
func (b *MQTTBackend) OnConnect(_ mqtt.Client) {
	sink := b.currentSink()
	if sink == nil {
		return
	}
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	// paho calls this on its own goroutine; waiting for SUBACK here is fine
	if err := b.subscribe(client); err != nil {
		log.WithField("component", "mqtt").Errorf("resubscribe after reconnect: %v", err)
		sink.OnProviderDisabled(Network)
		return
	}
	sink.OnProviderEnabled(Network)
}
