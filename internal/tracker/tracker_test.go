// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gps_tracker/internal/gps"
	"github.com/relabs-tech/gps_tracker/internal/metrics"
	"github.com/relabs-tech/gps_tracker/internal/provider"
	"github.com/relabs-tech/gps_tracker/internal/sender"
)

func init() {
	log.SetOutput(io.Discard)
}

type fakeBackend struct {
	kind    provider.Kind
	enabled bool

	mu           sync.Mutex
	sink         provider.EventSink
	unsubscribes int
}

func (f *fakeBackend) Kind() provider.Kind { return f.kind }
func (f *fakeBackend) Enabled() bool       { return f.enabled }

func (f *fakeBackend) Subscribe(_ provider.Request, sink provider.EventSink) error {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Unsubscribe() {
	f.mu.Lock()
	f.unsubscribes++
	f.mu.Unlock()
}

func (f *fakeBackend) currentSink() provider.EventSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

type fakeSender struct {
	calls  atomic.Int32
	result sender.Result
	block  chan struct{}
}

func (f *fakeSender) Send(_ context.Context, _ gps.Sample, _ sender.Endpoint) sender.Result {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.result
}

var (
	testConfig   = SamplingConfig{MinInterval: time.Second, MinDisplacement: 1}
	testEndpoint = sender.Endpoint{BaseURL: "http://host:5000"}
	testSample   = gps.Sample{Latitude: 47.5, Longitude: 19.05, CapturedAtMillis: 1700000000000}
)

func receive(t *testing.T, ch <-chan sender.Result) sender.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return sender.Result{}
	}
}

func TestSendWithoutFix(t *testing.T) {
	fs := &fakeSender{result: sender.Result{Outcome: sender.Success}}
	tr := New(fs, &fakeBackend{kind: provider.Satellite, enabled: true})

	res := receive(t, tr.SendCurrentFix(context.Background(), testEndpoint))
	assert.Equal(t, sender.NoFixAvailable, res.Outcome)
	assert.Zero(t, fs.calls.Load())
}

func TestStartAndSend(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	fs := &fakeSender{result: sender.Result{Outcome: sender.Success, StatusCode: 200}}
	tr := New(fs, sat)

	require.NoError(t, tr.StartSampling(testConfig))
	assert.Equal(t, Sampling, tr.State())
	assert.True(t, tr.IsUsable())

	sat.currentSink().OnFix(testSample)
	got, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, testSample, got)

	res := receive(t, tr.SendCurrentFix(context.Background(), testEndpoint))
	assert.Equal(t, sender.Result{Outcome: sender.Success, StatusCode: 200}, res)
	assert.Equal(t, int32(1), fs.calls.Load())
}

func TestSendIsAsynchronous(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	fs := &fakeSender{result: sender.Result{Outcome: sender.ServerRejected, StatusCode: 500}, block: make(chan struct{})}
	tr := New(fs, sat)
	require.NoError(t, tr.StartSampling(testConfig))
	sat.currentSink().OnFix(testSample)

	ch := tr.SendCurrentFix(context.Background(), testEndpoint)
	select {
	case <-ch:
		t.Fatal("result delivered before the send completed")
	default:
	}

	close(fs.block)
	assert.Equal(t, sender.ServerRejected, receive(t, ch).Outcome)
}

func TestStartWithoutProvider(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite}
	net := &fakeBackend{kind: provider.Network}
	tr := New(&fakeSender{}, sat, net)

	err := tr.StartSampling(testConfig)
	assert.ErrorIs(t, err, provider.ErrNoProviderAvailable)
	assert.Equal(t, Idle, tr.State())
	assert.False(t, tr.IsUsable())

	_, ok := tr.Latest()
	assert.False(t, ok)
	assert.Nil(t, sat.currentSink())
	assert.Nil(t, net.currentSink())
}

func TestStartPermissionDenied(t *testing.T) {
	tr := New(&fakeSender{}, &fakeBackend{kind: provider.Satellite, enabled: true})
	tr.SetAccessCheck(func() bool { return false })

	assert.ErrorIs(t, tr.StartSampling(testConfig), provider.ErrPermissionDenied)
	assert.Equal(t, Idle, tr.State())
}

func TestStopTwice(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	tr := New(&fakeSender{}, sat)
	require.NoError(t, tr.StartSampling(testConfig))

	tr.StopSampling()
	tr.StopSampling()
	assert.Equal(t, Idle, tr.State())
	_, active := tr.ActiveProvider()
	assert.False(t, active)

	// detached: late events no longer reach the store or availability
	sat.currentSink().OnFix(testSample)
	sat.currentSink().OnProviderDisabled(provider.Satellite)
	_, ok := tr.Latest()
	assert.False(t, ok)
	assert.Equal(t, provider.Enabled, tr.Availability().State(provider.Satellite))

	sat.mu.Lock()
	assert.Equal(t, 1, sat.unsubscribes)
	sat.mu.Unlock()
}

func TestStopWithoutStart(t *testing.T) {
	tr := New(&fakeSender{})
	tr.StopSampling()
	assert.Equal(t, Idle, tr.State())
}

func TestSendStaleFixAfterStop(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	fs := &fakeSender{result: sender.Result{Outcome: sender.Success, StatusCode: 200}}
	tr := New(fs, sat)
	require.NoError(t, tr.StartSampling(testConfig))
	sat.currentSink().OnFix(testSample)
	tr.StopSampling()

	res := receive(t, tr.SendCurrentFix(context.Background(), testEndpoint))
	assert.Equal(t, sender.Success, res.Outcome)
}

func TestOlderFixArrivingLastIsLatest(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	tr := New(&fakeSender{}, sat)
	require.NoError(t, tr.StartSampling(SamplingConfig{}))

	newer := gps.Sample{Latitude: 47.5, Longitude: 19.05, CapturedAtMillis: 1700000002000}
	older := gps.Sample{Latitude: 47.6, Longitude: 19.05, CapturedAtMillis: 1700000001000}
	sat.currentSink().OnFix(newer)
	sat.currentSink().OnFix(older)

	got, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, older, got)
}

func TestProviderDisabledMakesUnusable(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	tr := New(&fakeSender{}, sat)
	require.NoError(t, tr.StartSampling(testConfig))

	sat.currentSink().OnProviderDisabled(provider.Satellite)
	assert.False(t, tr.IsUsable())

	sat.currentSink().OnProviderEnabled(provider.Satellite)
	assert.True(t, tr.IsUsable())
}

func TestWatch(t *testing.T) {
	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	tr := New(&fakeSender{}, sat)
	require.NoError(t, tr.StartSampling(testConfig))

	ch, cancel := tr.Watch()
	sat.currentSink().OnFix(testSample)

	select {
	case got := <-ch:
		assert.Equal(t, testSample, got)
	case <-time.After(time.Second):
		t.Fatal("watcher did not receive sample")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// no panic on send after cancel
	sat.currentSink().OnFix(testSample)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	sat := &fakeBackend{kind: provider.Satellite, enabled: true}
	fs := &fakeSender{result: sender.Result{Outcome: sender.Success, StatusCode: 200}}
	tr := New(fs, sat)
	tr.Metrics = collector

	receive(t, tr.SendCurrentFix(context.Background(), testEndpoint))
	require.NoError(t, tr.StartSampling(testConfig))
	sat.currentSink().OnFix(testSample)
	receive(t, tr.SendCurrentFix(context.Background(), testEndpoint))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FixesReceived.WithLabelValues("satellite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.SendResults.WithLabelValues("no_fix_available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.SendResults.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProviderEnabled.WithLabelValues("satellite")))
}
