package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/planner/core/metrics"
	"github.com/kilianp07/planner/infra/logger"
)

// InfluxSink writes run results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRunResult writes one schedule_run point.
func (s *InfluxSink) RecordRunResult(res coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("organization", strconv.FormatInt(res.OrganizationID, 10)).
		AddTag("run_id", res.RunID).
		AddTag("status", string(res.Status)).
		AddField("variables", res.Variables).
		AddField("constraints", res.Constraints).
		AddField("assignments", res.Assignments).
		AddField("duration_s", round3(res.Duration.Seconds())).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBalance writes one category_load point per agent.
func (s *InfluxSink) RecordBalance(samples []coremetrics.BalanceSample) error {
	if len(samples) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(samples))
	for _, b := range samples {
		points = append(points, write.NewPointWithMeasurement("category_load").
			AddTag("organization", strconv.FormatInt(b.OrganizationID, 10)).
			AddTag("run_id", b.RunID).
			AddTag("category", b.Category).
			AddTag("agent_id", strconv.FormatInt(b.AgentID, 10)).
			AddField("load", round3(b.Load)).
			AddField("spread", round3(b.Spread)).
			SetTime(b.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordApply writes one schedule_apply point.
func (s *InfluxSink) RecordApply(res coremetrics.ApplyResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_apply").
		AddTag("organization", strconv.FormatInt(res.OrganizationID, 10)).
		AddTag("run_id", res.RunID).
		AddField("updated", res.Updated).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
