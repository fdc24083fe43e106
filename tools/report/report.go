// Package report provides tools that render reports and write files
// under a sandboxed output directory.
package report

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	s3tools "github.com/effective-security/nexus/tools/s3"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/tools", "report")

// OpenFile opens the report files for writing, allows to be overridden in tests
var OpenFile = func(name string, flag int, perm os.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(name, flag, perm)
}

const (
	ToolGenerate  = "report_generate"
	ToolWriteFile = "report_write_file"
	ToolJSONToCSV = "report_json_to_csv"
)

const (
	DefaultOutputDir = "reports"
	DefaultMaxBytes  = 10 << 20
)

// Uploader stores the rendered report in S3
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (*s3tools.PutObjectResult, error)
}

// Provider implements the report tools
type Provider struct {
	outputDir string
	maxBytes  int64
	uploader  Uploader
}

// Option configures the Provider
type Option func(*Provider)

// WithOutputDir sets the directory the files are written to
func WithOutputDir(dir string) Option {
	return func(p *Provider) {
		if dir != "" {
			p.outputDir = dir
		}
	}
}

// WithMaxBytes limits the size of a written file
func WithMaxBytes(n int64) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithUploader enables the upload_s3 option of report_generate
func WithUploader(u Uploader) Option {
	return func(p *Provider) {
		p.uploader = u
	}
}

// New returns the provider
func New(opts ...Option) *Provider {
	p := &Provider{
		outputDir: DefaultOutputDir,
		maxBytes:  DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputDir returns the output folder
func (p *Provider) OutputDir() string {
	return p.outputDir
}

// Tools returns the report tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolGenerate,
		"Generates a report with a title, summary and sections of text, key/value items and tables. "+
			"Formats: html, markdown, json, csv, yaml, toml. Optionally uploads the report to S3.",
		p.Generate))
	b.Add(tools.NewBase(ToolWriteFile,
		"Writes text content to a file under the reports folder. The path must be relative and stay inside the folder.",
		p.WriteFile))
	b.Add(tools.NewBase(ToolJSONToCSV,
		"Converts a list of JSON objects to CSV. Columns are the union of keys, sorted, unless given. "+
			"Writes the file when filename is set, otherwise returns the CSV content.",
		p.JSONToCSV))
	return b.Tools()
}

// Table is a section table
type Table struct {
	Columns []string `json:"columns" jsonschema:"title=Columns,description=Column headers." validate:"required,min=1"`
	Rows    [][]any  `json:"rows" jsonschema:"title=Rows,description=Row values in column order."`
}

// Item is a key/value pair of a section
type Item struct {
	Key   string `json:"key" yaml:"key" toml:"key" validate:"required"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// Section is a report section
type Section struct {
	Heading string `json:"heading" jsonschema:"title=Heading,description=Section heading." validate:"required"`
	Content string `json:"content,omitempty" jsonschema:"title=Content,description=Section text; markdown is kept as is."`
	Table   *Table `json:"table,omitempty" jsonschema:"title=Table,description=Optional table."`
	Items   []Item `json:"items,omitempty" jsonschema:"title=Items,description=Optional key/value items." validate:"dive"`
}

// S3Target is the upload destination
type S3Target struct {
	Bucket string `json:"bucket" validate:"required"`
	Key    string `json:"key,omitempty" jsonschema:"description=Object key; defaults to the file name."`
}

// GenerateRequest is the input of report_generate
type GenerateRequest struct {
	Title    string    `json:"title" jsonschema:"title=Title,description=The report title." validate:"required"`
	Summary  string    `json:"summary,omitempty" jsonschema:"title=Summary,description=Executive summary."`
	Sections []Section `json:"sections,omitempty" jsonschema:"title=Sections" validate:"dive"`
	Format   string    `json:"format,omitempty" jsonschema:"title=Format,description=One of html; markdown; json; csv; yaml; toml. Defaults to markdown." validate:"omitempty,oneof=html markdown md json csv yaml yml toml"`
	Filename string    `json:"filename,omitempty" jsonschema:"title=Filename,description=Relative file name; defaults to the title slug with the format extension."`
	UploadS3 *S3Target `json:"upload_s3,omitempty" jsonschema:"title=Upload to S3,description=Optional S3 destination."`
}

// Validate checks the combinations the tags can not express
func (r *GenerateRequest) Validate() error {
	for _, s := range r.Sections {
		if s.Table == nil {
			continue
		}
		for i, row := range s.Table.Rows {
			if len(row) > len(s.Table.Columns) {
				return errors.Newf("section %q: row %d has %d values for %d columns", s.Heading, i, len(row), len(s.Table.Columns))
			}
		}
	}
	return nil
}

// GenerateResult is the output of report_generate
type GenerateResult struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
	S3URI  string `json:"s3_uri,omitempty"`
	ETag   string `json:"etag,omitempty"`
}

// Generate renders and writes the report
func (p *Provider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	format := normalizeFormat(req.Format)
	if req.UploadS3 != nil && p.uploader == nil {
		return nil, tools.NotConfigured("S3 upload is not configured")
	}

	doc := newDocument(req)
	data, err := render(format, doc)
	if err != nil {
		return nil, err
	}

	name := values.StringsCoalesce(req.Filename, Slug(req.Title))
	if filepath.Ext(name) == "" {
		name += extensions[format]
	}
	path, err := p.write(name, data, false)
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{
		Path:   path,
		Format: format,
		Bytes:  len(data),
	}

	if t := req.UploadS3; t != nil {
		key := values.StringsCoalesce(t.Key, filepath.ToSlash(name))
		out, err := p.uploader.Upload(ctx, t.Bucket, key, data, contentTypes[format])
		if err != nil {
			return nil, err
		}
		res.S3URI = "s3://" + t.Bucket + "/" + key
		res.ETag = out.ETag
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "generated",
		"path", path,
		"format", format,
		"bytes", res.Bytes)
	return res, nil
}

// WriteFileRequest is the input of report_write_file
type WriteFileRequest struct {
	Path    string `json:"path" jsonschema:"title=Path,description=Relative path under the reports folder." validate:"required"`
	Content string `json:"content" jsonschema:"title=Content,description=Text content."`
	Append  bool   `json:"append,omitempty" jsonschema:"title=Append,description=Append to the file instead of replacing it."`
}

// WriteFileResult is the output of report_write_file
type WriteFileResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// WriteFile writes the content
func (p *Provider) WriteFile(_ context.Context, req *WriteFileRequest) (*WriteFileResult, error) {
	path, err := p.write(req.Path, []byte(req.Content), req.Append)
	if err != nil {
		return nil, err
	}
	return &WriteFileResult{
		Path:  path,
		Bytes: len(req.Content),
	}, nil
}

// ResolvePath returns the location of rel under the output folder,
// rejecting absolute paths and paths escaping the folder.
func (p *Provider) ResolvePath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", tools.InvalidInput("path is empty")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", tools.InvalidInput("path %q must be relative to the reports folder", rel)
	}
	if !filepath.IsLocal(rel) {
		return "", tools.InvalidInput("path %q escapes the reports folder", rel)
	}
	return filepath.Join(p.outputDir, filepath.Clean(rel)), nil
}

func (p *Provider) write(rel string, data []byte, appendMode bool) (string, error) {
	path, err := p.ResolvePath(rel)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > p.maxBytes {
		return "", tools.InvalidInput("content of %d bytes exceeds the limit of %d bytes", len(data), p.maxBytes)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create folder for %s", path)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := OpenFile(path, flags, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", path)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}

// Slug returns the file name friendly form of the title
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "report"
	}
	return s
}
