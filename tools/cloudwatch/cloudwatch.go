// Package cloudwatch provides tools for CloudWatch metrics, alarms and log events.
package cloudwatch

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	cwlogs "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const (
	ToolGetMetricStatistics = "cloudwatch_get_metric_statistics"
	ToolListMetrics         = "cloudwatch_list_metrics"
	ToolDescribeAlarms      = "cloudwatch_describe_alarms"
	ToolFilterLogEvents     = "cloudwatch_filter_log_events"
)

// Provider implements the CloudWatch tools
type Provider struct {
	metrics MetricsAPI
	logs    LogsAPI
}

// New returns the provider for the clients
func New(metrics MetricsAPI, logs LogsAPI) *Provider {
	return &Provider{
		metrics: metrics,
		logs:    logs,
	}
}

// NewFromConfig returns the provider with the SDK clients
func NewFromConfig(cfg aws.Config) *Provider {
	return New(cw.NewFromConfig(cfg), cwlogs.NewFromConfig(cfg))
}

// Tools returns the CloudWatch tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolGetMetricStatistics,
		"Returns CloudWatch metric datapoints for a namespace and metric name over a time window, with min/max/avg summary.",
		p.GetMetricStatistics))
	b.Add(tools.NewBase(ToolListMetrics,
		"Lists CloudWatch metrics, optionally filtered by namespace, metric name and dimensions.",
		p.ListMetrics))
	b.Add(tools.NewBase(ToolDescribeAlarms,
		"Describes CloudWatch metric alarms, optionally filtered by state and alarm name prefix.",
		p.DescribeAlarms))
	b.Add(tools.NewBase(ToolFilterLogEvents,
		"Searches CloudWatch Logs events in a log group with an optional filter pattern.",
		p.FilterLogEvents))
	return b.Tools()
}

// MetricStatisticsRequest is the input of cloudwatch_get_metric_statistics
type MetricStatisticsRequest struct {
	Namespace  string            `json:"namespace" jsonschema:"title=Namespace,description=The metric namespace like AWS/EC2." validate:"required"`
	MetricName string            `json:"metric_name" jsonschema:"title=Metric Name,description=The metric name like CPUUtilization." validate:"required"`
	Dimensions map[string]string `json:"dimensions,omitempty" jsonschema:"title=Dimensions,description=Metric dimensions name to value like InstanceId."`
	StartTime  string            `json:"start_time,omitempty" jsonschema:"title=Start Time,description=RFC3339 start of the window."`
	EndTime    string            `json:"end_time,omitempty" jsonschema:"title=End Time,description=RFC3339 end of the window; defaults to now."`
	Hours      int               `json:"hours,omitempty" jsonschema:"title=Hours,description=Hours back from the end when start_time is not set; defaults to 1." validate:"gte=0,lte=744"`
	Period     int               `json:"period,omitempty" jsonschema:"title=Period,description=Granularity in seconds; rounded up to a multiple of 60; defaults to 300." validate:"gte=0"`
	Statistics []string          `json:"statistics,omitempty" jsonschema:"title=Statistics,description=Statistics to return: Average|Sum|Minimum|Maximum|SampleCount; defaults to Average." validate:"dive,oneof=Average Sum Minimum Maximum SampleCount"`
	Unit       string            `json:"unit,omitempty" jsonschema:"title=Unit,description=Optional metric unit like Percent."`
}

// Datapoint is a metric datapoint
type Datapoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Average     *float64  `json:"average,omitempty"`
	Sum         *float64  `json:"sum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	SampleCount *float64  `json:"sample_count,omitempty"`
	Unit        string    `json:"unit,omitempty"`
}

// Summary of the primary statistic over the datapoints
type Summary struct {
	Statistic string  `json:"statistic"`
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Avg       float64 `json:"avg"`
}

// MetricStatisticsResult is the output of cloudwatch_get_metric_statistics
type MetricStatisticsResult struct {
	Namespace  string      `json:"namespace"`
	MetricName string      `json:"metric_name"`
	Label      string      `json:"label,omitempty"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
	Period     int         `json:"period"`
	Datapoints []Datapoint `json:"datapoints"`
	Summary    *Summary    `json:"summary,omitempty"`
}

// GetMetricStatistics returns the datapoints sorted by timestamp
func (p *Provider) GetMetricStatistics(ctx context.Context, req *MetricStatisticsRequest) (*MetricStatisticsResult, error) {
	start, end, err := tools.TimeRange(req.StartTime, req.EndTime, time.Duration(values.NumbersCoalesce(req.Hours, 1))*time.Hour)
	if err != nil {
		return nil, err
	}

	period := normalizePeriod(req.Period)
	stats := req.Statistics
	if len(stats) == 0 {
		stats = []string{string(cwtypes.StatisticAverage)}
	}

	input := &cw.GetMetricStatisticsInput{
		Namespace:  aws.String(req.Namespace),
		MetricName: aws.String(req.MetricName),
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(int32(period)),
		Dimensions: toDimensions(req.Dimensions),
	}
	for _, s := range stats {
		input.Statistics = append(input.Statistics, cwtypes.Statistic(s))
	}
	if req.Unit != "" {
		input.Unit = cwtypes.StandardUnit(req.Unit)
	}

	out, err := p.metrics.GetMetricStatistics(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get metric statistics")
	}

	res := &MetricStatisticsResult{
		Namespace:  req.Namespace,
		MetricName: req.MetricName,
		Label:      aws.ToString(out.Label),
		StartTime:  start,
		EndTime:    end,
		Period:     period,
		Datapoints: make([]Datapoint, 0, len(out.Datapoints)),
	}
	for _, dp := range out.Datapoints {
		res.Datapoints = append(res.Datapoints, Datapoint{
			Timestamp:   aws.ToTime(dp.Timestamp).UTC(),
			Average:     dp.Average,
			Sum:         dp.Sum,
			Minimum:     dp.Minimum,
			Maximum:     dp.Maximum,
			SampleCount: dp.SampleCount,
			Unit:        string(dp.Unit),
		})
	}
	sort.Slice(res.Datapoints, func(i, j int) bool {
		return res.Datapoints[i].Timestamp.Before(res.Datapoints[j].Timestamp)
	})
	res.Summary = summarize(stats[0], res.Datapoints)
	return res, nil
}

// normalizePeriod rounds up to a multiple of 60 seconds
func normalizePeriod(p int) int {
	if p <= 0 {
		return 300
	}
	if p < 60 {
		return 60
	}
	return ((p + 59) / 60) * 60
}

func statValue(stat string, dp *Datapoint) *float64 {
	switch cwtypes.Statistic(stat) {
	case cwtypes.StatisticSum:
		return dp.Sum
	case cwtypes.StatisticMinimum:
		return dp.Minimum
	case cwtypes.StatisticMaximum:
		return dp.Maximum
	case cwtypes.StatisticSampleCount:
		return dp.SampleCount
	default:
		return dp.Average
	}
}

func summarize(stat string, dps []Datapoint) *Summary {
	var vals []float64
	for i := range dps {
		if v := statValue(stat, &dps[i]); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return &Summary{
		Statistic: stat,
		Count:     len(vals),
		Min:       slices.Min(vals),
		Max:       slices.Max(vals),
		Avg:       sum / float64(len(vals)),
	}
}

func toDimensions(m map[string]string) []cwtypes.Dimension {
	if len(m) == 0 {
		return nil
	}
	list := make([]cwtypes.Dimension, 0, len(m))
	for _, k := range sortedKeys(m) {
		list = append(list, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(m[k])})
	}
	return list
}

func fromDimensions(list []cwtypes.Dimension) map[string]string {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]string, len(list))
	for _, d := range list {
		m[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	return m
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
