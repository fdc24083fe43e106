package transcribe_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	ttypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/effective-security/nexus/mocks/mocktranscribe"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setup(t *testing.T) (*transcribe.Provider, *mocktranscribe.MockAPI) {
	ctrl := gomock.NewController(t)
	api := mocktranscribe.NewMockAPI(ctrl)
	return transcribe.New(api), api
}

func TestMediaFormat(t *testing.T) {
	tcases := []struct {
		uri    string
		exp    ttypes.MediaFormat
		exists bool
	}{
		{"s3://b/a.mp3", ttypes.MediaFormatMp3, true},
		{"s3://b/dir/A.WAV", ttypes.MediaFormatWav, true},
		{"s3://b/a.m4a", ttypes.MediaFormatM4a, true},
		{"s3://b/a.txt", "", false},
		{"s3://b/noext", "", false},
	}
	for _, tc := range tcases {
		f, ok := transcribe.MediaFormat(tc.uri)
		assert.Equal(t, tc.exists, ok, tc.uri)
		assert.Equal(t, tc.exp, f, tc.uri)
	}
}

func TestStartJob(t *testing.T) {
	p, api := setup(t)
	api.EXPECT().StartTranscriptionJob(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *awstranscribe.StartTranscriptionJobInput, _ ...func(*awstranscribe.Options)) (*awstranscribe.StartTranscriptionJobOutput, error) {
			name := aws.ToString(in.TranscriptionJobName)
			assert.True(t, strings.HasPrefix(name, transcribe.JobPrefix), name)
			assert.Len(t, name, len(transcribe.JobPrefix)+36)
			assert.Equal(t, ttypes.MediaFormatFlac, in.MediaFormat)
			assert.True(t, aws.ToBool(in.IdentifyLanguage))
			assert.Empty(t, in.LanguageCode)
			require.NotNil(t, in.Settings)
			assert.Equal(t, int32(3), aws.ToInt32(in.Settings.MaxSpeakerLabels))
			return &awstranscribe.StartTranscriptionJobOutput{
				TranscriptionJob: &ttypes.TranscriptionJob{
					TranscriptionJobName:   in.TranscriptionJobName,
					TranscriptionJobStatus: ttypes.TranscriptionJobStatusInProgress,
					Media:                  in.Media,
					MediaFormat:            in.MediaFormat,
				},
			}, nil
		})

	res, err := p.StartJob(context.Background(), &transcribe.StartJobRequest{
		MediaURI:    "s3://media/call.flac",
		MaxSpeakers: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", res.Status)
	assert.Equal(t, "s3://media/call.flac", res.MediaURI)
	assert.Equal(t, "flac", res.MediaFormat)
}

func TestStartJob_Explicit(t *testing.T) {
	p, api := setup(t)
	api.EXPECT().StartTranscriptionJob(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *awstranscribe.StartTranscriptionJobInput, _ ...func(*awstranscribe.Options)) (*awstranscribe.StartTranscriptionJobOutput, error) {
			assert.Equal(t, "my-job", aws.ToString(in.TranscriptionJobName))
			assert.Equal(t, ttypes.LanguageCodeEnUs, in.LanguageCode)
			assert.Nil(t, in.IdentifyLanguage)
			assert.Equal(t, ttypes.MediaFormatMp4, in.MediaFormat)
			assert.Equal(t, "out", aws.ToString(in.OutputBucketName))
			return &awstranscribe.StartTranscriptionJobOutput{
				TranscriptionJob: &ttypes.TranscriptionJob{TranscriptionJobName: in.TranscriptionJobName},
			}, nil
		})

	res, err := p.StartJob(context.Background(), &transcribe.StartJobRequest{
		MediaURI:     "s3://media/video",
		MediaFormat:  "mp4",
		LanguageCode: "en-US",
		JobName:      "my-job",
		OutputBucket: "out",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-job", res.Name)
}

func TestStartJob_Validation(t *testing.T) {
	p, _ := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)
	start := list[0]

	for _, input := range []string{
		`{"media_uri":"https://example.com/a.mp3"}`,
		`{"media_uri":"s3://b/a.doc"}`,
		`{"media_uri":"s3://b/a.mp3","max_speakers":1}`,
	} {
		out, err := start.Call(context.Background(), input)
		require.NoError(t, err)
		env, err := tools.ParseEnvelope(out)
		require.NoError(t, err)
		assert.Equal(t, tools.ErrorTypeValidation, env.ErrorType, input)
	}
}

func TestGetJob(t *testing.T) {
	p, api := setup(t)
	api.EXPECT().GetTranscriptionJob(gomock.Any(), gomock.Any()).Return(&awstranscribe.GetTranscriptionJobOutput{
		TranscriptionJob: &ttypes.TranscriptionJob{
			TranscriptionJobName:   aws.String("j1"),
			TranscriptionJobStatus: ttypes.TranscriptionJobStatusCompleted,
			LanguageCode:           ttypes.LanguageCodeEnGb,
			Transcript:             &ttypes.Transcript{TranscriptFileUri: aws.String("https://s3/transcript.json")},
		},
	}, nil)

	res, err := p.GetJob(context.Background(), &transcribe.GetJobRequest{JobName: "j1"})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", res.Status)
	assert.Equal(t, "en-GB", res.LanguageCode)
	assert.Equal(t, "https://s3/transcript.json", res.TranscriptURI)

	api.EXPECT().GetTranscriptionJob(gomock.Any(), gomock.Any()).Return(&awstranscribe.GetTranscriptionJobOutput{}, nil)
	_, err = p.GetJob(context.Background(), &transcribe.GetJobRequest{JobName: "j2"})
	assert.ErrorIs(t, err, tools.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	p, api := setup(t)
	first := api.EXPECT().ListTranscriptionJobs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *awstranscribe.ListTranscriptionJobsInput, _ ...func(*awstranscribe.Options)) (*awstranscribe.ListTranscriptionJobsOutput, error) {
			assert.Equal(t, ttypes.TranscriptionJobStatusFailed, in.Status)
			assert.Equal(t, "nexus", aws.ToString(in.JobNameContains))
			return &awstranscribe.ListTranscriptionJobsOutput{
				TranscriptionJobSummaries: []ttypes.TranscriptionJobSummary{
					{TranscriptionJobName: aws.String("nexus-1"), FailureReason: aws.String("bad media")},
				},
				NextToken: aws.String("t"),
			}, nil
		})
	api.EXPECT().ListTranscriptionJobs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *awstranscribe.ListTranscriptionJobsInput, _ ...func(*awstranscribe.Options)) (*awstranscribe.ListTranscriptionJobsOutput, error) {
			assert.Equal(t, "t", aws.ToString(in.NextToken))
			return &awstranscribe.ListTranscriptionJobsOutput{
				TranscriptionJobSummaries: []ttypes.TranscriptionJobSummary{
					{TranscriptionJobName: aws.String("nexus-2")},
				},
				NextToken: aws.String("t2"),
			}, nil
		}).After(first)

	res, err := p.ListJobs(context.Background(), &transcribe.ListJobsRequest{Status: "FAILED", NameContains: "nexus", MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Truncated)
	assert.Equal(t, "bad media", res.Jobs[0].FailureReason)
}
