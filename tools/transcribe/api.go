package transcribe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/transcribe"
)

//go:generate mockgen -source=api.go -destination=../../mocks/mocktranscribe/transcribe_mock.gen.go -package mocktranscribe

// API is the subset of Transcribe client used by the tools
type API interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
	ListTranscriptionJobs(ctx context.Context, params *transcribe.ListTranscriptionJobsInput, optFns ...func(*transcribe.Options)) (*transcribe.ListTranscriptionJobsOutput, error)
}
