package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tool(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req tavilyModels.SearchRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)

		assert.Equal(t, "What is capital of France", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)

		resp := tavily.SearchResult{
			Results: []tavilyModels.SearchResult{
				{Title: "Test Result", URL: "https://example.com", Content: "Test content", Score: 0.9},
			},
		}
		if req.IncludeAnswer {
			resp.Answer = "Paris"
		}

		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx := context.Background()

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	p := tavily.New("testkey",
		tavily.WithBaseURL(server.URL),
		tavily.WithHTTPClient(server.Client()),
		tavily.WithCache(fc, time.Minute),
	)
	list, err := p.Tools()
	require.NoError(t, err)
	require.Len(t, list, 1)
	tool := list[0]

	assert.Equal(t, tavily.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), `web search`)

	params := llmutils.ToJSON(tool.Parameters())
	assert.Contains(t, params, `"Query"`)
	assert.Contains(t, params, `"required":["Query"]`)

	_, err = tool.Call(ctx, "plain string")
	assert.ErrorIs(t, err, tools.ErrFailedUnmarshalInput)
	assert.EqualError(t, err, "failed to unmarshal input: check the schema and try again")

	input := &tavily.SearchRequest{
		Query: "What is capital of France",
	}

	resp, err := p.Search(ctx, input)
	require.NoError(t, err)
	exp := `ANSWER: Paris
- URL: https://example.com
  TITLE: Test Result
  SCORE: 0.900000
  CONTENT: Test content
`
	assert.Equal(t, exp, resp.String())

	for i := 0; i < 2; i++ {
		out, err := tool.Call(ctx, llmutils.ToJSON(input))
		require.NoError(t, err)
		env, err := tools.ParseEnvelope(out)
		require.NoError(t, err)
		require.True(t, env.IsSuccess())
		assert.Equal(t, i == 1, env.Cached)
		assert.JSONEq(t, `{"results":[{"title":"Test Result","url":"https://example.com","content":"Test content","score":0.9}],"answer":"Paris"}`, string(env.Data))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func Test_NotConfigured(t *testing.T) {
	list, err := tavily.New("").Tools()
	require.NoError(t, err)

	out, err := list[0].Call(context.Background(), `{"Query":"x"}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeConfiguration, env.ErrorType)
}

func Test_Tool_Real(t *testing.T) {
	// uncomment to run Real Tests
	t.Skip("skipping real test")

	apikey := os.Getenv("TAVILY_API_KEY")
	if apikey == "" {
		t.Skip("TAVILY_API_KEY is not set")
	}

	resp, err := tavily.New(apikey).Search(context.Background(), &tavily.SearchRequest{
		Query: "What is capital of France",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.String(), "Paris")
}
