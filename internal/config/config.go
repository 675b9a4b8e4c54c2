// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds all application configuration values.
type Config struct {
	// Delivery
	EndpointBaseURL string

	// Sampling
	MinIntervalMillis int
	MinDisplacementM  float64
	AccessMarkerFile  string // optional file whose presence grants location access

	// Satellite backend
	GPSSerialPort string
	GPSBaudRate   int

	// Network backend (disabled when MQTTBroker is empty)
	MQTTBroker       string
	MQTTClientID     string
	TopicNetworkFix  string
	TopicRelayOutput string

	// HTTP client timeouts, milliseconds
	HTTPConnectTimeoutMillis int
	HTTPReadTimeoutMillis    int
	HTTPWriteTimeoutMillis   int

	// Web Server
	WebServerPort int

	// Logging
	LogLevel      string
	LogFilePath   string
	LogMaxAgeDays int
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		EndpointBaseURL:          "http://192.168.1.105:5000",
		MinIntervalMillis:        1000,
		MinDisplacementM:         1,
		GPSSerialPort:            "/dev/serial0",
		GPSBaudRate:              9600,
		MQTTClientID:             "gps-tracker-" + uuid.NewString(),
		TopicNetworkFix:          "gps/network",
		TopicRelayOutput:         "gps/network",
		HTTPConnectTimeoutMillis: 10000,
		HTTPReadTimeoutMillis:    10000,
		HTTPWriteTimeoutMillis:   10000,
		WebServerPort:            8080,
		LogLevel:                 "INFO",
		LogMaxAgeDays:            30,
	}
}

// Package-level state for the process-wide configuration: set once by
// InitGlobal, read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Delivery
	case "ENDPOINT_BASE_URL":
		c.EndpointBaseURL = value

	// Sampling
	case "MIN_INTERVAL_MS":
		return parseNonNegative(key, value, &c.MinIntervalMillis)
	case "MIN_DISPLACEMENT_M":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MIN_DISPLACEMENT_M %q: %w", value, err)
		}
		if d < 0 {
			return fmt.Errorf("MIN_DISPLACEMENT_M must be >= 0, got %g", d)
		}
		c.MinDisplacementM = d
	case "ACCESS_MARKER_FILE":
		c.AccessMarkerFile = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_NETWORK_FIX":
		c.TopicNetworkFix = value
	case "TOPIC_RELAY_OUTPUT":
		c.TopicRelayOutput = value

	// HTTP
	case "HTTP_CONNECT_TIMEOUT_MS":
		return parsePositive(key, value, &c.HTTPConnectTimeoutMillis)
	case "HTTP_READ_TIMEOUT_MS":
		return parsePositive(key, value, &c.HTTPReadTimeoutMillis)
	case "HTTP_WRITE_TIMEOUT_MS":
		return parsePositive(key, value, &c.HTTPWriteTimeoutMillis)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Logging
	case "LOG_LEVEL":
		switch strings.ToUpper(value) {
		case "DEBUG", "INFO", "WARN", "ERROR":
			c.LogLevel = strings.ToUpper(value)
		default:
			return fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", value)
		}
	case "LOG_FILE_PATH":
		c.LogFilePath = value
	case "LOG_MAX_AGE_DAYS":
		return parseNonNegative(key, value, &c.LogMaxAgeDays)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseNonNegative(key, value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < 0 {
		return fmt.Errorf("%s must be >= 0, got %d", key, n)
	}
	*dst = n
	return nil
}

func parsePositive(key, value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s must be > 0, got %d", key, n)
	}
	*dst = n
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be > 0")
	}
	if c.MQTTBroker != "" && c.TopicNetworkFix == "" {
		return fmt.Errorf("TOPIC_NETWORK_FIX is required when MQTT_BROKER is set")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// MinInterval returns MIN_INTERVAL_MS as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMillis) * time.Millisecond
}

// HTTPTimeouts returns the connect, read and write timeouts.
func (c *Config) HTTPTimeouts() (connect, read, write time.Duration) {
	return time.Duration(c.HTTPConnectTimeoutMillis) * time.Millisecond,
		time.Duration(c.HTTPReadTimeoutMillis) * time.Millisecond,
		time.Duration(c.HTTPWriteTimeoutMillis) * time.Millisecond
}

// ListenAddress returns the web server listen address.
func (c *Config) ListenAddress() string {
	return ":" + strconv.Itoa(c.WebServerPort)
}

// InitGlobal initializes the global configuration from file. Only the
// first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
