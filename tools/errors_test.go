package tools_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tcases := []struct {
		err       error
		exp       tools.ErrorType
		retryable bool
	}{
		{err: tools.ErrFailedUnmarshalInput, exp: tools.ErrorTypeValidation},
		{err: tools.InvalidInput("bucket is required"), exp: tools.ErrorTypeValidation},
		{err: tools.NotConfigured("OPENWEATHER_API_KEY is not set"), exp: tools.ErrorTypeConfiguration},
		{err: tools.NotFound("no such tool"), exp: tools.ErrorTypeNotFound},
		{err: errors.Wrap(context.DeadlineExceeded, "request"), exp: tools.ErrorTypeTimeout, retryable: true},
		{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}, exp: tools.ErrorTypeAuth},
		{err: &smithy.GenericAPIError{Code: "UnrecognizedClientException"}, exp: tools.ErrorTypeAuth},
		{err: &smithy.GenericAPIError{Code: "ExpiredToken"}, exp: tools.ErrorTypeAuth},
		{err: &smithy.GenericAPIError{Code: "ThrottlingException"}, exp: tools.ErrorTypeThrottled, retryable: true},
		{err: &smithy.GenericAPIError{Code: "SlowDown"}, exp: tools.ErrorTypeThrottled, retryable: true},
		{err: &smithy.GenericAPIError{Code: "NoSuchBucket"}, exp: tools.ErrorTypeNotFound},
		{err: &smithy.GenericAPIError{Code: "DBInstanceNotFound"}, exp: tools.ErrorTypeNotFound},
		{err: &smithy.GenericAPIError{Code: "ValidationException"}, exp: tools.ErrorTypeValidation},
		{err: &smithy.GenericAPIError{Code: "InternalServerException"}, exp: tools.ErrorTypeUpstream, retryable: true},
		{err: &smithy.GenericAPIError{Code: "SomethingElse"}, exp: tools.ErrorTypeUpstream},
		{err: errors.Wrap(&smithy.GenericAPIError{Code: "NoSuchKey"}, "get object"), exp: tools.ErrorTypeNotFound},
		{err: &httpclient.StatusError{StatusCode: http.StatusUnauthorized}, exp: tools.ErrorTypeAuth},
		{err: &httpclient.StatusError{StatusCode: http.StatusForbidden}, exp: tools.ErrorTypeAuth},
		{err: &httpclient.StatusError{StatusCode: http.StatusNotFound}, exp: tools.ErrorTypeNotFound},
		{err: &httpclient.StatusError{StatusCode: http.StatusBadRequest}, exp: tools.ErrorTypeValidation},
		{err: errors.WithStack(&httpclient.StatusError{StatusCode: http.StatusTooManyRequests}), exp: tools.ErrorTypeThrottled, retryable: true},
		{err: &httpclient.StatusError{StatusCode: http.StatusBadGateway}, exp: tools.ErrorTypeUpstream, retryable: true},
		{err: errors.New("operation error S3: failed to retrieve credentials"), exp: tools.ErrorTypeAuth},
		{err: errors.New("boom"), exp: tools.ErrorTypeInternal},
	}

	for _, tc := range tcases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			info := tools.Classify(tc.err)
			assert.Equal(t, tc.exp, info.Type)
			assert.Equal(t, tc.retryable, info.Retryable)
			assert.Equal(t, tc.err.Error(), info.Message)
			assert.NotEmpty(t, info.Resolution)
		})
	}

	assert.Empty(t, tools.Classify(nil).Type)
}

func TestEnvelope(t *testing.T) {
	s := tools.Success("t1", map[string]int{"a": 1}, true)
	env, err := tools.ParseEnvelope(s)
	assert.NoError(t, err)
	assert.True(t, env.IsSuccess())
	assert.True(t, env.Cached)
	assert.Equal(t, "t1", env.Tool)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))

	// unsupported data
	s = tools.Success("t1", make(chan int), false)
	env, err = tools.ParseEnvelope(s)
	assert.NoError(t, err)
	assert.False(t, env.IsSuccess())
	assert.Equal(t, tools.ErrorTypeInternal, env.ErrorType)
	assert.Error(t, env.DecodeData(&struct{}{}))

	_, err = tools.ParseEnvelope(`{"status":"maybe"}`)
	assert.EqualError(t, err, `invalid tool result status: "maybe"`)
	_, err = tools.ParseEnvelope(`nope`)
	assert.Error(t, err)
}
