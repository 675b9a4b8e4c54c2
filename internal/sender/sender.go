// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sender delivers position samples to an HTTP endpoint.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/gps"
)

const (
	// SubmitPath is appended to the endpoint base URL.
	SubmitPath  = "/gps"
	contentType = "application/json; charset=utf-8"
)

// Endpoint is the base address fixes are submitted to.
type Endpoint struct {
	BaseURL string
}

// SubmitURL returns BaseURL with SubmitPath appended, or an error when the
// base URL is blank or not an absolute http(s) URL.
func (e Endpoint) SubmitURL() (string, error) {
	if strings.TrimSpace(e.BaseURL) == "" {
		return "", errors.New("endpoint base URL is blank")
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return "", fmt.Errorf("endpoint base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint base URL %q: scheme must be http or https", e.BaseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint base URL %q: missing host", e.BaseURL)
	}
	return e.BaseURL + SubmitPath, nil
}

// Sender performs one best-effort POST per call. There are no retries.
type Sender struct {
	client *http.Client
}

// New returns a Sender using client, which should be shared process-wide.
// A nil client gets one built with DefaultTimeouts.
func New(client *http.Client) *Sender {
	if client == nil {
		client = NewHTTPClient(DefaultTimeouts)
	}
	return &Sender{client: client}
}

// Send serializes the sample and posts it to the endpoint. It blocks until
// the exchange completes or a timeout fires.
func (s *Sender) Send(ctx context.Context, sample gps.Sample, endpoint Endpoint) Result {
	logger := log.WithField("component", "sender")

	target, err := endpoint.SubmitURL()
	if err != nil {
		logger.Warnf("not sending: %v", err)
		return Result{Outcome: InvalidEndpoint, Err: err}
	}

	body, err := json.Marshal(sample)
	if err != nil {
		// a Sample always marshals; treat failure as local transport trouble
		return Result{Outcome: TransportFailed, Err: fmt.Errorf("marshal sample: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: InvalidEndpoint, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warnf("POST %s failed: %v", target, err)
		return Result{Outcome: TransportFailed, Err: err}
	}
	defer resp.Body.Close()
	// drain so the connection can be reused; the body has no contract
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warnf("POST %s rejected: HTTP %d", target, resp.StatusCode)
		return Result{Outcome: ServerRejected, StatusCode: resp.StatusCode}
	}
	logger.Infof("sent %s to %s", sample, target)
	return Result{Outcome: Success, StatusCode: resp.StatusCode}
}
