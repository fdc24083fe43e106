package tools

import (
	"context"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/go-playground/validator/v10"
)

var (
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrNotConfigured        = errors.New("not configured")
)

// InvalidInput returns error marked as ErrInvalidInput
func InvalidInput(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}

// NotConfigured returns error marked as ErrNotConfigured
func NotConfigured(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotConfigured)
}

// NotFound returns error marked as ErrNotFound
func NotFound(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// ErrorType is the class of the tool error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeThrottled     ErrorType = "throttled"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeUpstream      ErrorType = "upstream"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeInternal      ErrorType = "internal"
)

var resolutions = map[ErrorType]string{
	ErrorTypeValidation:    "Check the tool parameters against the schema and try again.",
	ErrorTypeConfiguration: "Configure the credentials or endpoint required by the tool.",
	ErrorTypeAuth:          "Verify the credentials and permissions for the requested resource.",
	ErrorTypeThrottled:     "The request was throttled, wait and retry with fewer requests.",
	ErrorTypeNotFound:      "Verify the resource name or identifier exists.",
	ErrorTypeUpstream:      "The upstream service failed, retry later or adjust the request.",
	ErrorTypeTimeout:       "The request timed out, retry with a narrower query.",
	ErrorTypeInternal:      "Unexpected error, report the issue if it persists.",
}

// ErrorInfo describes the classified error
type ErrorInfo struct {
	Type       ErrorType
	Message    string
	Resolution string
	Retryable  bool
}

// Classify returns the error class with the resolution hint
func Classify(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	t, retryable := classify(err)
	return ErrorInfo{
		Type:       t,
		Message:    err.Error(),
		Resolution: resolutions[t],
		Retryable:  retryable,
	}
}

func classify(err error) (ErrorType, bool) {
	switch {
	case errors.Is(err, ErrFailedUnmarshalInput), errors.Is(err, ErrInvalidInput):
		return ErrorTypeValidation, false
	case errors.Is(err, ErrNotConfigured):
		return ErrorTypeConfiguration, false
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound, false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorTypeTimeout, true
	}

	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		return ErrorTypeValidation, false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		return classifyAPIError(ae.ErrorCode())
	}

	msg := err.Error()
	if strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "failed to refresh cached credentials") {
		return ErrorTypeAuth, false
	}
	return ErrorTypeInternal, false
}

func classifyStatus(code int) (ErrorType, bool) {
	switch {
	case code == 400 || code == 422:
		return ErrorTypeValidation, false
	case code == 401 || code == 403:
		return ErrorTypeAuth, false
	case code == 404:
		return ErrorTypeNotFound, false
	case code == 408:
		return ErrorTypeTimeout, true
	case code == 429:
		return ErrorTypeThrottled, true
	case code >= 500:
		return ErrorTypeUpstream, true
	}
	return ErrorTypeUpstream, false
}

func classifyAPIError(code string) (ErrorType, bool) {
	switch {
	case strings.HasPrefix(code, "AccessDenied"),
		code == "UnrecognizedClientException",
		code == "UnauthorizedOperation",
		code == "InvalidClientTokenId",
		code == "InvalidAccessKeyId",
		code == "SignatureDoesNotMatch",
		code == "ExpiredToken",
		code == "ExpiredTokenException":
		return ErrorTypeAuth, false
	case strings.HasPrefix(code, "Throttling"),
		code == "TooManyRequestsException",
		code == "RequestLimitExceeded",
		code == "SlowDown":
		return ErrorTypeThrottled, true
	case code == "NoSuchBucket",
		code == "NoSuchKey",
		code == "NotFound",
		strings.Contains(code, "NotFound"):
		return ErrorTypeNotFound, false
	case code == "ValidationException",
		code == "InvalidParameterValue",
		code == "InvalidParameterCombination",
		code == "InvalidParameterException",
		code == "BadRequestException":
		return ErrorTypeValidation, false
	case code == "ServiceUnavailable",
		code == "ServiceUnavailableException",
		code == "InternalServerException",
		code == "InternalFailure",
		code == "InternalError":
		return ErrorTypeUpstream, true
	}
	return ErrorTypeUpstream, false
}
