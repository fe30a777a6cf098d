package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxExportConfig configures the optional periodic export of
// Metrics into InfluxDB, for fleets that centralize metrics there
// instead of scraping /metrics. Grounded on the teacher's InfluxDB
// node (pkg/nodes/database/influxdb.go) client construction, which
// carries this dependency with no concrete in-tree user.
type InfluxExportConfig struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	Measurement   string
	FlushInterval time.Duration
}

// InfluxExporter periodically writes a Metrics snapshot as a single
// InfluxDB point.
type InfluxExporter struct {
	config   InfluxExportConfig
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	metrics  *Metrics
	stopCh   chan struct{}
}

// NewInfluxExporter connects to InfluxDB and verifies reachability.
func NewInfluxExporter(config InfluxExportConfig, metrics *Metrics) (*InfluxExporter, error) {
	if config.Measurement == "" {
		config.Measurement = "nciadapter"
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 30 * time.Second
	}

	client := influxdb2.NewClient(config.URL, config.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to influxdb: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb health check failed: %s", health.Status)
	}

	return &InfluxExporter{
		config:   config,
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}, nil
}

// Run periodically writes a metrics snapshot until Stop is called.
func (e *InfluxExporter) Run() {
	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.exportOnce()
		}
	}
}

func (e *InfluxExporter) exportOnce() {
	e.metrics.UpdateSystemMetrics()
	snapshot := e.metrics.GetMetrics()

	fields := make(map[string]interface{})
	flattenFields("", snapshot, fields)

	point := write.NewPoint(e.config.Measurement, nil, fields, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.writeAPI.WritePoint(ctx, point)
}

func flattenFields(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenFields(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// Stop halts the export loop and closes the InfluxDB client.
func (e *InfluxExporter) Stop() {
	close(e.stopCh)
	e.client.Close()
}
