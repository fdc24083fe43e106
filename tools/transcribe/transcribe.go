// Package transcribe provides tools for Amazon Transcribe batch jobs.
package transcribe

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	ttypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

const (
	ToolStartJob = "transcribe_start_job"
	ToolGetJob   = "transcribe_get_job"
	ToolListJobs = "transcribe_list_jobs"
)

// JobPrefix is the prefix of generated job names
const JobPrefix = "nexus-"

var mediaFormats = map[string]ttypes.MediaFormat{
	".mp3":  ttypes.MediaFormatMp3,
	".mp4":  ttypes.MediaFormatMp4,
	".wav":  ttypes.MediaFormatWav,
	".flac": ttypes.MediaFormatFlac,
	".ogg":  ttypes.MediaFormatOgg,
	".amr":  ttypes.MediaFormatAmr,
	".webm": ttypes.MediaFormatWebm,
	".m4a":  ttypes.MediaFormatM4a,
}

// Provider implements the Transcribe tools
type Provider struct {
	api API
}

// New returns the provider
func New(api API) *Provider {
	return &Provider{api: api}
}

// NewFromConfig returns the provider with the SDK client
func NewFromConfig(cfg aws.Config) *Provider {
	return New(transcribe.NewFromConfig(cfg))
}

// Tools returns the Transcribe tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolStartJob,
		"Starts Amazon Transcribe job for audio or video file in S3.",
		p.StartJob))
	b.Add(tools.NewBase(ToolGetJob,
		"Returns status and transcript location of Amazon Transcribe job.",
		p.GetJob))
	b.Add(tools.NewBase(ToolListJobs,
		"Lists Amazon Transcribe jobs filtered by status and name.",
		p.ListJobs))
	return b.Tools()
}

// MediaFormat returns the media format by the file extension
func MediaFormat(uri string) (ttypes.MediaFormat, bool) {
	f, ok := mediaFormats[strings.ToLower(path.Ext(uri))]
	return f, ok
}

// StartJobRequest is the input of transcribe_start_job
type StartJobRequest struct {
	MediaURI     string `json:"media_uri" jsonschema:"title=Media URI,description=S3 URI of the media file like s3://bucket/audio.mp3." validate:"required,startswith=s3://"`
	LanguageCode string `json:"language_code,omitempty" jsonschema:"title=Language Code,description=Language code like en-US; when empty the language is identified."`
	MediaFormat  string `json:"media_format,omitempty" jsonschema:"title=Media Format,description=Media format; inferred from the file extension when empty." validate:"omitempty,oneof=mp3 mp4 wav flac ogg amr webm m4a"`
	OutputBucket string `json:"output_bucket,omitempty" jsonschema:"title=Output Bucket,description=Optional bucket for the transcript; service managed when empty."`
	JobName      string `json:"job_name,omitempty" jsonschema:"title=Job Name,description=Optional job name; generated when empty."`
	MaxSpeakers  int    `json:"max_speakers,omitempty" jsonschema:"title=Max Speakers,description=Enables speaker labels for 2 to 30 speakers." validate:"omitempty,gte=2,lte=30"`
}

// Job describes the transcription job
type Job struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	LanguageCode  string     `json:"language_code,omitempty"`
	MediaFormat   string     `json:"media_format,omitempty"`
	MediaURI      string     `json:"media_uri,omitempty"`
	TranscriptURI string     `json:"transcript_uri,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// StartJob starts the transcription job
func (p *Provider) StartJob(ctx context.Context, req *StartJobRequest) (*Job, error) {
	format := ttypes.MediaFormat(req.MediaFormat)
	if format == "" {
		var ok bool
		if format, ok = MediaFormat(req.MediaURI); !ok {
			return nil, tools.InvalidInput("unable to infer media format of %q: specify media_format", req.MediaURI)
		}
	}

	input := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(values.StringsCoalesce(req.JobName, JobPrefix+uuid.NewString())),
		Media:                &ttypes.Media{MediaFileUri: aws.String(req.MediaURI)},
		MediaFormat:          format,
	}
	if req.LanguageCode != "" {
		input.LanguageCode = ttypes.LanguageCode(req.LanguageCode)
	} else {
		input.IdentifyLanguage = aws.Bool(true)
	}
	if req.OutputBucket != "" {
		input.OutputBucketName = aws.String(req.OutputBucket)
	}
	if req.MaxSpeakers > 0 {
		input.Settings = &ttypes.Settings{
			ShowSpeakerLabels: aws.Bool(true),
			MaxSpeakerLabels:  aws.Int32(int32(req.MaxSpeakers)),
		}
	}

	out, err := p.api.StartTranscriptionJob(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start transcription job for %s", req.MediaURI)
	}
	return job(out.TranscriptionJob), nil
}

// GetJobRequest is the input of transcribe_get_job
type GetJobRequest struct {
	JobName string `json:"job_name" jsonschema:"title=Job Name,description=The transcription job name." validate:"required"`
}

// GetJob returns the transcription job
func (p *Provider) GetJob(ctx context.Context, req *GetJobRequest) (*Job, error) {
	out, err := p.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(req.JobName),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get transcription job %s", req.JobName)
	}
	if out.TranscriptionJob == nil {
		return nil, tools.NotFound("transcription job %s not found", req.JobName)
	}
	return job(out.TranscriptionJob), nil
}

func job(j *ttypes.TranscriptionJob) *Job {
	if j == nil {
		return &Job{}
	}
	r := &Job{
		Name:          aws.ToString(j.TranscriptionJobName),
		Status:        string(j.TranscriptionJobStatus),
		LanguageCode:  string(j.LanguageCode),
		MediaFormat:   string(j.MediaFormat),
		FailureReason: aws.ToString(j.FailureReason),
		CreatedAt:     j.CreationTime,
		CompletedAt:   j.CompletionTime,
	}
	if j.Media != nil {
		r.MediaURI = aws.ToString(j.Media.MediaFileUri)
	}
	if j.Transcript != nil {
		r.TranscriptURI = aws.ToString(j.Transcript.TranscriptFileUri)
	}
	return r
}

// ListJobsRequest is the input of transcribe_list_jobs
type ListJobsRequest struct {
	Status       string `json:"status,omitempty" jsonschema:"title=Status,description=Optional status: QUEUED or IN_PROGRESS or FAILED or COMPLETED." validate:"omitempty,oneof=QUEUED IN_PROGRESS FAILED COMPLETED"`
	NameContains string `json:"name_contains,omitempty" jsonschema:"title=Name Contains,description=Optional substring of the job name."`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum jobs to return; defaults to 20." validate:"gte=0,lte=100"`
}

// ListJobsResult is the output of transcribe_list_jobs
type ListJobsResult struct {
	Jobs      []Job `json:"jobs"`
	Count     int   `json:"count"`
	Truncated bool  `json:"truncated"`
}

// ListJobs returns the transcription jobs
func (p *Provider) ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 20)
	input := &transcribe.ListTranscriptionJobsInput{
		MaxResults: aws.Int32(int32(maxResults)),
		Status:     ttypes.TranscriptionJobStatus(req.Status),
	}
	if req.NameContains != "" {
		input.JobNameContains = aws.String(req.NameContains)
	}

	res := &ListJobsResult{Jobs: []Job{}}
	for {
		out, err := p.api.ListTranscriptionJobs(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list transcription jobs")
		}
		for _, s := range out.TranscriptionJobSummaries {
			if len(res.Jobs) >= maxResults {
				res.Truncated = true
				break
			}
			res.Jobs = append(res.Jobs, Job{
				Name:          aws.ToString(s.TranscriptionJobName),
				Status:        string(s.TranscriptionJobStatus),
				LanguageCode:  string(s.LanguageCode),
				FailureReason: aws.ToString(s.FailureReason),
				CreatedAt:     s.CreationTime,
				CompletedAt:   s.CompletionTime,
			})
		}
		if res.Truncated || out.NextToken == nil || len(res.Jobs) >= maxResults {
			res.Truncated = res.Truncated || (out.NextToken != nil && len(res.Jobs) >= maxResults)
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Jobs)
	return res, nil
}
