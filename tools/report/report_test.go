package report_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/mocks/mocks3"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/report"
	s3tools "github.com/effective-security/nexus/tools/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts ...report.Option) *report.Provider {
	tools.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { tools.NowFunc = time.Now })

	return report.New(append([]report.Option{report.WithOutputDir(t.TempDir())}, opts...)...)
}

func sample() *report.GenerateRequest {
	return &report.GenerateRequest{
		Title:   "Monthly Cost Review: Q1/2026",
		Summary: "Spend is <flat>.",
		Sections: []report.Section{
			{
				Heading: "Overview",
				Content: "First paragraph.\n\nSecond paragraph.",
				Items:   []report.Item{{Key: "Owner", Value: "FinOps"}},
			},
			{
				Heading: "By service",
				Table: &report.Table{
					Columns: []string{"service", "cost"},
					Rows:    [][]any{{"EC2", 120.5}, {"S3 | Glacier", float64(30)}, {"RDS"}},
				},
			},
		},
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "monthly-cost-review-q1-2026", report.Slug("Monthly Cost Review: Q1/2026"))
	assert.Equal(t, "report", report.Slug("***"))
	assert.Equal(t, "a-b", report.Slug("  A  b--"))
}

func TestGenerate_Markdown(t *testing.T) {
	p := setup(t)
	res, err := p.Generate(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, report.FormatMarkdown, res.Format)
	assert.Equal(t, filepath.Join(p.OutputDir(), "monthly-cost-review-q1-2026.md"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, len(data), res.Bytes)
	md := string(data)
	assert.True(t, strings.HasPrefix(md, "# Monthly Cost Review: Q1/2026\n\n_Generated 2026-03-01 12:00 UTC_\n\nSpend is <flat>.\n"))
	assert.Contains(t, md, "## Overview\n\nFirst paragraph.\n\nSecond paragraph.\n\n- **Owner**: FinOps\n")
	assert.Contains(t, md, "| service | cost |\n| --- | --- |\n| EC2 | 120.5 |\n| S3 \\| Glacier | 30 |\n| RDS |  |\n")
}

func TestGenerate_HTML(t *testing.T) {
	p := setup(t)
	req := sample()
	req.Format = "html"
	req.Filename = "out/review"
	res, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.OutputDir(), "out", "review.html"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "<title>Monthly Cost Review: Q1/2026</title>")
	assert.Contains(t, html, "Spend is &lt;flat&gt;.")
	assert.Contains(t, html, "<p>First paragraph.</p>\n<p>Second paragraph.</p>")
	assert.Contains(t, html, "<dt>Owner</dt><dd>FinOps</dd>")
	assert.Contains(t, html, "<tr><td>EC2</td><td>120.5</td></tr>")
}

func TestGenerate_CSV(t *testing.T) {
	p := setup(t)
	req := sample()
	req.Format = "csv"
	req.Sections = append(req.Sections, report.Section{
		Heading: "Regions",
		Table:   &report.Table{Columns: []string{"region"}, Rows: [][]any{{"us-east-1"}}},
	})
	res, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "service,cost\nEC2,120.5\nS3 | Glacier,30\nRDS,\n\nregion\nus-east-1\n", string(data))

	req = &report.GenerateRequest{Title: "Items", Format: "csv", Sections: []report.Section{
		{Heading: "Owner", Items: []report.Item{{Key: "team", Value: "a,b"}}},
	}}
	res, err = p.Generate(context.Background(), req)
	require.NoError(t, err)
	data, err = os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "section,key,value\nOwner,team,\"a,b\"\n", string(data))

	_, err = p.Generate(context.Background(), &report.GenerateRequest{Title: "Empty", Format: "csv"})
	assert.ErrorIs(t, err, tools.ErrInvalidInput)
}

func TestGenerate_Structured(t *testing.T) {
	p := setup(t)
	ctx := context.Background()

	req := sample()
	req.Format = "yaml"
	res, err := p.Generate(ctx, req)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Path, ".yaml"))
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	var y report.Document
	require.NoError(t, yaml.Unmarshal(data, &y))
	assert.Equal(t, "Monthly Cost Review: Q1/2026", y.Title)
	assert.Equal(t, []string{"S3 | Glacier", "30"}, y.Sections[1].Table.Rows[1])

	req.Format = "toml"
	res, err = p.Generate(ctx, req)
	require.NoError(t, err)
	data, err = os.ReadFile(res.Path)
	require.NoError(t, err)
	var tm report.Document
	_, err = toml.Decode(string(data), &tm)
	require.NoError(t, err)
	assert.Equal(t, now, tm.Generated.UTC())
	assert.Equal(t, "FinOps", tm.Sections[0].Items[0].Value)

	req.Format = "json"
	res, err = p.Generate(ctx, req)
	require.NoError(t, err)
	data, err = os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"heading": "By service"`)
}

func TestGenerate_UploadS3(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks3.NewMockAPI(ctrl)
	p := setup(t, report.WithUploader(s3tools.New(api, nil)))

	api.EXPECT().PutObject(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			assert.Equal(t, "reports-bucket", aws.ToString(in.Bucket))
			assert.Equal(t, "monthly-cost-review-q1-2026.html", aws.ToString(in.Key))
			assert.Equal(t, "text/html; charset=utf-8", aws.ToString(in.ContentType))
			body, err := io.ReadAll(in.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), "<h1>")
			return &s3.PutObjectOutput{ETag: aws.String(`"e1"`)}, nil
		})

	req := sample()
	req.Format = "html"
	req.UploadS3 = &report.S3Target{Bucket: "reports-bucket"}
	res, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "s3://reports-bucket/monthly-cost-review-q1-2026.html", res.S3URI)
	assert.Equal(t, "e1", res.ETag)
}

func TestGenerate_UploadNotConfigured(t *testing.T) {
	p := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)
	require.Len(t, list, 3)

	out, err := list[0].Call(context.Background(), `{"title":"x","upload_s3":{"bucket":"b"}}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeConfiguration, env.ErrorType)
}

func TestGenerate_Validation(t *testing.T) {
	p := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)

	for _, input := range []string{
		`{"title":""}`,
		`{"title":"x","format":"pdf"}`,
		`{"title":"x","sections":[{"heading":""}]}`,
		`{"title":"x","sections":[{"heading":"h","table":{"columns":["a"],"rows":[[1,2]]}}]}`,
	} {
		out, err := list[0].Call(context.Background(), input)
		require.NoError(t, err)
		env, err := tools.ParseEnvelope(out)
		require.NoError(t, err)
		assert.Equal(t, tools.ErrorTypeValidation, env.ErrorType, input)
	}
}

func TestWriteFile(t *testing.T) {
	p := setup(t)
	ctx := context.Background()

	res, err := p.WriteFile(ctx, &report.WriteFileRequest{Path: "notes/a.txt", Content: "one\n"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Bytes)
	_, err = p.WriteFile(ctx, &report.WriteFileRequest{Path: "notes/a.txt", Content: "two\n", Append: true})
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	_, err = p.WriteFile(ctx, &report.WriteFileRequest{Path: "notes/a.txt", Content: "three"})
	require.NoError(t, err)
	data, err = os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
}

type failingClose struct {
	strings.Builder
}

func (f *failingClose) Close() error {
	return errors.New("disk full")
}

func TestWriteFile_CloseError(t *testing.T) {
	p := setup(t)
	w := &failingClose{}
	openFile := report.OpenFile
	report.OpenFile = func(string, int, os.FileMode) (io.WriteCloser, error) {
		return w, nil
	}
	t.Cleanup(func() { report.OpenFile = openFile })

	_, err := p.WriteFile(context.Background(), &report.WriteFileRequest{Path: "a.txt", Content: "data"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "data", w.String())
}

func TestResolvePath(t *testing.T) {
	p := setup(t)
	for _, bad := range []string{"", "/etc/passwd", "../x", "a/../../x", "..", `\windows`} {
		_, err := p.ResolvePath(bad)
		assert.ErrorIs(t, err, tools.ErrInvalidInput, bad)
	}
	path, err := p.ResolvePath("a/./b/../c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.OutputDir(), "a", "c.txt"), path)
}

func TestMaxBytes(t *testing.T) {
	p := setup(t, report.WithMaxBytes(3))
	_, err := p.WriteFile(context.Background(), &report.WriteFileRequest{Path: "a.txt", Content: "abcd"})
	assert.ErrorIs(t, err, tools.ErrInvalidInput)
}

func TestJSONToCSV(t *testing.T) {
	p := setup(t)
	list, err := p.Tools()
	require.NoError(t, err)

	out, err := list[2].Call(context.Background(),
		`{"records":[{"name":"a","n":1,"tags":["x"]},{"name":"b","ok":true,"n":2.5}]}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	require.True(t, env.IsSuccess(), env.Error)

	var res report.JSONToCSVResult
	require.NoError(t, env.DecodeData(&res))
	assert.Equal(t, []string{"n", "name", "ok", "tags"}, res.Columns)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "n,name,ok,tags\n1,a,,\"[\"\"x\"\"]\"\n2.5,b,true,\n", res.CSV)

	r2, err := p.JSONToCSV(context.Background(), &report.JSONToCSVRequest{
		Records:  []map[string]any{{"b": "1", "a": "2"}},
		Columns:  []string{"b", "a"},
		Filename: "out.csv",
	})
	require.NoError(t, err)
	assert.Empty(t, r2.CSV)
	data, err := os.ReadFile(r2.Path)
	require.NoError(t, err)
	assert.Equal(t, "b,a\n1,2\n", string(data))
}
