package cloudwatch

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	cwlogs "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

// ListMetricsRequest is the input of cloudwatch_list_metrics
type ListMetricsRequest struct {
	Namespace  string            `json:"namespace,omitempty" jsonschema:"title=Namespace,description=Optional metric namespace like AWS/Lambda."`
	MetricName string            `json:"metric_name,omitempty" jsonschema:"title=Metric Name,description=Optional metric name."`
	Dimensions map[string]string `json:"dimensions,omitempty" jsonschema:"title=Dimensions,description=Dimension filters; an empty value matches any value of the dimension."`
	MaxResults int               `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum metrics to return; defaults to 100." validate:"gte=0,lte=1000"`
}

// Metric describes a metric
type Metric struct {
	Namespace  string            `json:"namespace"`
	MetricName string            `json:"metric_name"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// ListMetricsResult is the output of cloudwatch_list_metrics
type ListMetricsResult struct {
	Metrics   []Metric `json:"metrics"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated"`
}

// ListMetrics follows NextToken until max results
func (p *Provider) ListMetrics(ctx context.Context, req *ListMetricsRequest) (*ListMetricsResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 100)

	input := &cw.ListMetricsInput{}
	if req.Namespace != "" {
		input.Namespace = aws.String(req.Namespace)
	}
	if req.MetricName != "" {
		input.MetricName = aws.String(req.MetricName)
	}
	for _, k := range sortedKeys(req.Dimensions) {
		f := cwtypes.DimensionFilter{Name: aws.String(k)}
		if v := req.Dimensions[k]; v != "" {
			f.Value = aws.String(v)
		}
		input.Dimensions = append(input.Dimensions, f)
	}

	res := &ListMetricsResult{Metrics: []Metric{}}
	for {
		out, err := p.metrics.ListMetrics(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list metrics")
		}
		for _, m := range out.Metrics {
			if len(res.Metrics) >= maxResults {
				res.Truncated = true
				break
			}
			res.Metrics = append(res.Metrics, Metric{
				Namespace:  aws.ToString(m.Namespace),
				MetricName: aws.ToString(m.MetricName),
				Dimensions: fromDimensions(m.Dimensions),
			})
		}
		if res.Truncated || out.NextToken == nil {
			break
		}
		if len(res.Metrics) >= maxResults {
			res.Truncated = true
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Metrics)
	return res, nil
}

// DescribeAlarmsRequest is the input of cloudwatch_describe_alarms
type DescribeAlarmsRequest struct {
	State           string `json:"state,omitempty" jsonschema:"title=State,description=Optional alarm state: OK|ALARM|INSUFFICIENT_DATA." validate:"omitempty,oneof=OK ALARM INSUFFICIENT_DATA"`
	AlarmNamePrefix string `json:"alarm_name_prefix,omitempty" jsonschema:"title=Alarm Name Prefix,description=Optional alarm name prefix."`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum alarms to return; defaults to 50." validate:"gte=0,lte=100"`
}

// Alarm describes a metric alarm
type Alarm struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	State              string            `json:"state"`
	StateReason        string            `json:"state_reason,omitempty"`
	StateUpdatedAt     *time.Time        `json:"state_updated_at,omitempty"`
	Namespace          string            `json:"namespace,omitempty"`
	MetricName         string            `json:"metric_name,omitempty"`
	Statistic          string            `json:"statistic,omitempty"`
	ComparisonOperator string            `json:"comparison_operator,omitempty"`
	Threshold          *float64          `json:"threshold,omitempty"`
	Dimensions         map[string]string `json:"dimensions,omitempty"`
}

// DescribeAlarmsResult is the output of cloudwatch_describe_alarms
type DescribeAlarmsResult struct {
	Alarms []Alarm        `json:"alarms"`
	Count  int            `json:"count"`
	States map[string]int `json:"states"`
}

// DescribeAlarms returns the metric alarms with the count per state
func (p *Provider) DescribeAlarms(ctx context.Context, req *DescribeAlarmsRequest) (*DescribeAlarmsResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 50)

	input := &cw.DescribeAlarmsInput{
		MaxRecords: aws.Int32(int32(maxResults)),
		AlarmTypes: []cwtypes.AlarmType{cwtypes.AlarmTypeMetricAlarm},
	}
	if req.State != "" {
		input.StateValue = cwtypes.StateValue(req.State)
	}
	if req.AlarmNamePrefix != "" {
		input.AlarmNamePrefix = aws.String(req.AlarmNamePrefix)
	}

	out, err := p.metrics.DescribeAlarms(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe alarms")
	}

	res := &DescribeAlarmsResult{
		Alarms: make([]Alarm, 0, len(out.MetricAlarms)),
		States: map[string]int{},
	}
	for _, a := range out.MetricAlarms {
		if len(res.Alarms) >= maxResults {
			break
		}
		state := string(a.StateValue)
		res.States[state]++
		res.Alarms = append(res.Alarms, Alarm{
			Name:               aws.ToString(a.AlarmName),
			Description:        aws.ToString(a.AlarmDescription),
			State:              state,
			StateReason:        aws.ToString(a.StateReason),
			StateUpdatedAt:     a.StateUpdatedTimestamp,
			Namespace:          aws.ToString(a.Namespace),
			MetricName:         aws.ToString(a.MetricName),
			Statistic:          string(a.Statistic),
			ComparisonOperator: string(a.ComparisonOperator),
			Threshold:          a.Threshold,
			Dimensions:         fromDimensions(a.Dimensions),
		})
	}
	res.Count = len(res.Alarms)
	return res, nil
}

const maxLogPages = 20

// FilterLogEventsRequest is the input of cloudwatch_filter_log_events
type FilterLogEventsRequest struct {
	LogGroupName        string `json:"log_group_name" jsonschema:"title=Log Group Name,description=The log group to search." validate:"required"`
	FilterPattern       string `json:"filter_pattern,omitempty" jsonschema:"title=Filter Pattern,description=CloudWatch Logs filter pattern like ERROR."`
	LogStreamNamePrefix string `json:"log_stream_name_prefix,omitempty" jsonschema:"title=Log Stream Prefix,description=Optional log stream name prefix."`
	StartTime           string `json:"start_time,omitempty" jsonschema:"title=Start Time,description=RFC3339 start of the window."`
	EndTime             string `json:"end_time,omitempty" jsonschema:"title=End Time,description=RFC3339 end of the window; defaults to now."`
	Minutes             int    `json:"minutes,omitempty" jsonschema:"title=Minutes,description=Minutes back from the end when start_time is not set; defaults to 60." validate:"gte=0"`
	Limit               int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum events to return; defaults to 100." validate:"gte=0,lte=1000"`
}

// LogEvent is a log event
type LogEvent struct {
	Timestamp time.Time `json:"timestamp"`
	LogStream string    `json:"log_stream"`
	Message   string    `json:"message"`
}

// FilterLogEventsResult is the output of cloudwatch_filter_log_events
type FilterLogEventsResult struct {
	LogGroupName string     `json:"log_group_name"`
	Events       []LogEvent `json:"events"`
	Count        int        `json:"count"`
	Truncated    bool       `json:"truncated"`
}

// FilterLogEvents follows NextToken until the limit
func (p *Provider) FilterLogEvents(ctx context.Context, req *FilterLogEventsRequest) (*FilterLogEventsResult, error) {
	start, end, err := tools.TimeRange(req.StartTime, req.EndTime, time.Duration(values.NumbersCoalesce(req.Minutes, 60))*time.Minute)
	if err != nil {
		return nil, err
	}
	limit := values.NumbersCoalesce(req.Limit, 100)

	input := &cwlogs.FilterLogEventsInput{
		LogGroupName: aws.String(req.LogGroupName),
		StartTime:    aws.Int64(start.UnixMilli()),
		EndTime:      aws.Int64(end.UnixMilli()),
		Limit:        aws.Int32(int32(limit)),
	}
	if req.FilterPattern != "" {
		input.FilterPattern = aws.String(req.FilterPattern)
	}
	if req.LogStreamNamePrefix != "" {
		input.LogStreamNamePrefix = aws.String(req.LogStreamNamePrefix)
	}

	res := &FilterLogEventsResult{
		LogGroupName: req.LogGroupName,
		Events:       []LogEvent{},
	}
	// empty pages with NextToken are returned while the service scans the streams
	for page := 1; ; page++ {
		out, err := p.logs.FilterLogEvents(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to filter log events")
		}
		for _, e := range out.Events {
			if len(res.Events) >= limit {
				res.Truncated = true
				break
			}
			res.Events = append(res.Events, LogEvent{
				Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)).UTC(),
				LogStream: aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
		if res.Truncated || out.NextToken == nil {
			break
		}
		if len(res.Events) >= limit || page >= maxLogPages {
			res.Truncated = true
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Events)
	return res, nil
}
