/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ntpstats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/facebook/ntpstats/ntpq"
	"github.com/facebook/ntpstats/ntpq/parser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter periodically collects HostStatistics and exposes the latest one as gauges
type PrometheusExporter struct {
	registry   *prometheus.Registry
	collector  *Collector
	host       string
	cred       *ntpq.Credential
	listenPort int
	interval   time.Duration
	sysStats   *SysStats

	up         prometheus.Gauge
	packets    *prometheus.GaugeVec
	interfaces *prometheus.GaugeVec
	sysstat    *prometheus.GaugeVec
	kernel     *prometheus.GaugeVec
	self       *prometheus.GaugeVec
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(collector *Collector, host string, cred *ntpq.Credential, cfg ExporterConfig) *PrometheusExporter {
	e := &PrometheusExporter{
		registry:   prometheus.NewRegistry(),
		collector:  collector,
		host:       host,
		cred:       cred,
		listenPort: cfg.ListenPort,
		interval:   cfg.Interval,
		sysStats:   NewSysStats(),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntpstats_up",
			Help: "1 if the last collection succeeded",
		}),
		packets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpstats_packets",
			Help: "host packet counters and average packets per second over ntpd uptime",
		}, []string{"direction", "ip_version", "kind"}),
		interfaces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpstats_interface",
			Help: "per interface address counters from ifstats",
		}, []string{"interface", "address", "ip_version", "counter"}),
		sysstat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpstats_sysstat",
			Help: "numeric values from sysstat",
		}, []string{"name"}),
		kernel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpstats_kernel",
			Help: "numeric values from kerninfo",
		}, []string{"name"}),
		self: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpstats_exporter",
			Help: "exporter process and collection stats",
		}, []string{"name"}),
	}
	e.registry.MustRegister(e.up, e.packets, e.interfaces, e.sysstat, e.kernel, e.self)
	return e
}

// Handler returns http handler serving metrics
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}

// Start collects stats every interval and serves them until ctx is done
func (e *PrometheusExporter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		e.loop(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.listenPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Infof("serving metrics on %s/metrics", srv.Addr)
	err := srv.ListenAndServe()
	// don't leave collection running when listening failed
	cancel()
	<-loopDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *PrometheusExporter) loop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		if err := e.Update(ctx); err != nil {
			log.Errorf("failed to collect stats from %s: %v", e.host, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Update runs one collection and replaces exported values with its results
func (e *PrometheusExporter) Update(ctx context.Context) error {
	start := time.Now()
	stats, err := e.collector.HostStatistics(ctx, e.host, e.cred)
	e.sysStats.AddCollection(time.Since(start), err)
	e.updateSelf()
	if err != nil {
		e.up.Set(0)
		return err
	}
	e.up.Set(1)
	e.setPackets("sent", stats.Packets.Sent)
	e.setPackets("received", stats.Packets.Received)

	// interfaces come and go, don't keep stale ones
	e.interfaces.Reset()
	for iface, addrs := range stats.Interfaces {
		for addr, s := range addrs {
			v := s.IPVersion.String()
			e.interfaces.WithLabelValues(iface, addr, v, "received").Set(float64(s.Received))
			e.interfaces.WithLabelValues(iface, addr, v, "sent").Set(float64(s.Sent))
			e.interfaces.WithLabelValues(iface, addr, v, "failed").Set(float64(s.Failed))
			e.interfaces.WithLabelValues(iface, addr, v, "peers").Set(float64(s.Peers))
			e.interfaces.WithLabelValues(iface, addr, v, "uptime").Set(float64(s.Uptime))
		}
	}
	setScalarBlock(e.sysstat, stats.SysStats)
	setScalarBlock(e.kernel, stats.Kernel)
	return nil
}

func (e *PrometheusExporter) setPackets(direction string, d DirectionSummary) {
	buckets := map[string]Bucket{
		"IPv4":  d.IPv4,
		"IPv6":  d.IPv6,
		"total": d.Total,
	}
	for version, b := range buckets {
		e.packets.WithLabelValues(direction, version, "count").Set(float64(b.Count))
		e.packets.WithLabelValues(direction, version, "packets_per_second").Set(float64(b.PacketsPerSecond))
	}
}

func (e *PrometheusExporter) updateSelf() {
	stats, err := e.sysStats.Collect()
	if err != nil {
		log.Warningf("failed to collect exporter stats: %v", err)
		return
	}
	for name, v := range stats {
		e.self.WithLabelValues(name).Set(v)
	}
}

func setScalarBlock(vec *prometheus.GaugeVec, block parser.ScalarStatusBlock) {
	vec.Reset()
	for name, v := range block {
		if f, ok := v.AsFloat(); ok {
			vec.WithLabelValues(name).Set(f)
		}
	}
}
