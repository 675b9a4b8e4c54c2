// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_tracker/internal/metrics"
	"github.com/relabs-tech/gps_tracker/internal/provider"
	"github.com/relabs-tech/gps_tracker/internal/sender"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from the device itself
	},
}

// sendWait bounds how long /api/send waits for the background send. The
// sender's own timeouts normally fire first.
const sendWait = 45 * time.Second

// Web is the HTTP surface of the tracker: latest fix for display, sampling
// control and on-demand send.
type Web struct {
	Tracker  *tracker.Tracker
	Endpoint sender.Endpoint
	Sampling tracker.SamplingConfig
	Metrics  *metrics.Collector
}

type statusResponse struct {
	State     string            `json:"state"`
	Usable    bool              `json:"usable"`
	Active    string            `json:"active,omitempty"`
	Providers map[string]string `json:"providers"`
	Endpoint  string            `json:"endpoint"`
}

type sendRequest struct {
	BaseURL string `json:"base_url"`
}

type sendResponse struct {
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routes.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/fix", w.handleFix)
	mux.HandleFunc("GET /api/status", w.handleStatus)
	mux.HandleFunc("POST /api/start", w.handleStart)
	mux.HandleFunc("POST /api/stop", w.handleStop)
	mux.HandleFunc("POST /api/send", w.handleSend)
	mux.HandleFunc("GET /ws", w.handleWS)
	mux.Handle("GET /metrics", w.Metrics.Handler())
	return mux
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.WithField("component", "web").Warnf("json encode error: %v", err)
	}
}

func (w *Web) handleFix(rw http.ResponseWriter, r *http.Request) {
	sample, ok := w.Tracker.Latest()
	if !ok {
		http.Error(rw, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, http.StatusOK, sample)
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:     w.Tracker.State().String(),
		Usable:    w.Tracker.IsUsable(),
		Providers: w.Tracker.Availability().Snapshot(),
		Endpoint:  w.Endpoint.BaseURL,
	}
	if k, ok := w.Tracker.ActiveProvider(); ok {
		resp.Active = k.String()
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (w *Web) handleStart(rw http.ResponseWriter, r *http.Request) {
	err := w.Tracker.StartSampling(w.Sampling)
	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, provider.ErrPermissionDenied):
		writeJSON(rw, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, provider.ErrNoProviderAvailable):
		writeJSON(rw, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (w *Web) handleStop(rw http.ResponseWriter, r *http.Request) {
	w.Tracker.StopSampling()
	rw.WriteHeader(http.StatusNoContent)
}

// handleSend accepts an optional {"base_url": "..."} body overriding the
// configured endpoint.
func (w *Web) handleSend(rw http.ResponseWriter, r *http.Request) {
	endpoint := w.Endpoint
	if r.ContentLength != 0 {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		if base := strings.TrimSpace(req.BaseURL); base != "" {
			endpoint = sender.Endpoint{BaseURL: base}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendWait)
	defer cancel()

	select {
	case res := <-w.Tracker.SendCurrentFix(ctx, endpoint):
		resp := sendResponse{Outcome: res.Outcome.String(), StatusCode: res.StatusCode}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		writeJSON(rw, sendStatus(res.Outcome), resp)
	case <-r.Context().Done():
		// client went away; the send still completes in the background
	}
}

func sendStatus(o sender.Outcome) int {
	switch o {
	case sender.Success:
		return http.StatusOK
	case sender.NoFixAvailable:
		return http.StatusConflict
	case sender.InvalidEndpoint:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// handleWS pushes the latest sample on connect and then every new one.
func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.WithField("component", "web").Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	samples, cancel := w.Tracker.Watch()
	defer cancel()

	// reader: detect close from the browser
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithField("component", "web").Debugf("websocket read error: %v", err)
				}
				return
			}
		}
	}()

	if sample, ok := w.Tracker.Latest(); ok {
		if err := conn.WriteJSON(sample); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.WithField("component", "web").Debugf("websocket deadline error: %v", err)
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				log.WithField("component", "web").Debugf("websocket write error: %v", err)
				return
			}
		}
	}
}
