package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool", "error_type"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsCacheHits = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_hits",
		Help:         "stats_cache_hits provides total tool results served from cache",
		RequiredTags: []string{"namespace"},
	}

	StatsCacheMisses = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_cache_misses",
		Help:         "stats_cache_misses provides total tool cache lookups without a valid entry",
		RequiredTags: []string{"namespace"},
	}

	StatsHTTPRequestsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_http_requests_retried",
		Help:         "stats_http_requests_retried provides total HTTP requests retried",
		RequiredTags: []string{"host"},
	}

	StatsGraphNodesExecuted = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_graph_nodes_executed",
		Help:         "stats_graph_nodes_executed provides total graph nodes executed",
		RequiredTags: []string{"node", "status"},
	}

	StatsSwarmHandoffs = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_swarm_handoffs",
		Help:         "stats_swarm_handoffs provides total handoffs between swarm agents",
		RequiredTags: []string{"from", "to"},
	}
)

// Perf
var (
	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfHTTPRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_http_request",
		Help:         "perf_http_request provides duration of outbound HTTP request",
		RequiredTags: []string{"host"},
	}

	PerfAgentInvoke = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_agent_invoke",
		Help:         "perf_agent_invoke provides duration of agent invocation",
		RequiredTags: []string{"agent"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgentInvoke,
	&PerfHTTPRequest,
	&PerfToolCall,
	&StatsCacheHits,
	&StatsCacheMisses,
	&StatsGraphNodesExecuted,
	&StatsHTTPRequestsRetried,
	&StatsSwarmHandoffs,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
