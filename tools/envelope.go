package tools

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NowFunc returns the envelope timestamp, can be overridden in tests
var NowFunc = time.Now

// Envelope is the decoded tool result
type Envelope struct {
	Status     string          `json:"status"`
	Tool       string          `json:"tool"`
	Data       json.RawMessage `json:"data,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorType  ErrorType       `json:"error_type,omitempty"`
	Resolution string          `json:"resolution,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// IsSuccess returns true for success status
func (e *Envelope) IsSuccess() bool {
	return e.Status == StatusSuccess
}

// DecodeData decodes the data payload into out
func (e *Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return errors.New("envelope has no data")
	}
	return errors.WithStack(json.Unmarshal(e.Data, out))
}

type successEnvelope struct {
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	Data      any    `json:"data"`
	Cached    bool   `json:"cached"`
	Timestamp string `json:"timestamp"`
}

type errorEnvelope struct {
	Status     string    `json:"status"`
	Tool       string    `json:"tool"`
	Error      string    `json:"error"`
	ErrorType  ErrorType `json:"error_type"`
	Resolution string    `json:"resolution"`
	Timestamp  string    `json:"timestamp"`
}

func timestamp() string {
	return NowFunc().UTC().Format(time.RFC3339)
}

// Success returns the success envelope with the data
func Success(tool string, data any, cached bool) string {
	js, err := json.Marshal(successEnvelope{
		Status:    StatusSuccess,
		Tool:      tool,
		Data:      data,
		Cached:    cached,
		Timestamp: timestamp(),
	})
	if err != nil {
		return Failure(tool, errors.Wrap(err, "failed to marshal output"))
	}
	return string(js)
}

// Failure returns the error envelope for the classified error
func Failure(tool string, err error) string {
	info := Classify(err)
	js, _ := json.Marshal(errorEnvelope{
		Status:     StatusError,
		Tool:       tool,
		Error:      info.Message,
		ErrorType:  info.Type,
		Resolution: info.Resolution,
		Timestamp:  timestamp(),
	})
	return string(js)
}

// ParseEnvelope decodes the tool result
func ParseEnvelope(s string) (*Envelope, error) {
	e := new(Envelope)
	if err := json.Unmarshal([]byte(s), e); err != nil {
		return nil, errors.Wrap(err, "invalid tool result")
	}
	if e.Status != StatusSuccess && e.Status != StatusError {
		return nil, errors.Newf("invalid tool result status: %q", e.Status)
	}
	return e, nil
}
