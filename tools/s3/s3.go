// Package s3 provides tools for Amazon S3 buckets and objects.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const (
	ToolListBuckets = "s3_list_buckets"
	ToolListObjects = "s3_list_objects"
	ToolGetObject   = "s3_get_object"
	ToolPutObject   = "s3_put_object"
	ToolPresignURL  = "s3_presign_url"
)

const (
	defaultMaxBytes      = 1 << 20
	defaultExpiryMinutes = 15
	maxExpiryMinutes     = 7 * 24 * 60
)

// Provider implements the S3 tools
type Provider struct {
	api     API
	presign PresignAPI
}

// New returns the provider
func New(api API, presign PresignAPI) *Provider {
	return &Provider{
		api:     api,
		presign: presign,
	}
}

// NewFromConfig returns the provider with the SDK clients
func NewFromConfig(cfg aws.Config) *Provider {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// custom endpoints like localstack do not support virtual hosted buckets
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return New(client, s3.NewPresignClient(client))
}

// Tools returns the S3 tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolListBuckets,
		"Lists S3 buckets of the account, optionally filtered by name prefix.",
		p.ListBuckets))
	b.Add(tools.NewBase(ToolListObjects,
		"Lists objects in S3 bucket under a prefix, with common prefixes when delimiter is set.",
		p.ListObjects))
	b.Add(tools.NewBase(ToolGetObject,
		"Returns the content of a text object from S3 bucket.",
		p.GetObject))
	b.Add(tools.NewBase(ToolPutObject,
		"Writes text content to an object in S3 bucket.",
		p.PutObject))
	b.Add(tools.NewBase(ToolPresignURL,
		"Returns a presigned URL to download or upload S3 object.",
		p.PresignURL))
	return b.Tools()
}

// ListBucketsRequest is the input of s3_list_buckets
type ListBucketsRequest struct {
	Prefix string `json:"prefix,omitempty" jsonschema:"title=Prefix,description=Optional bucket name prefix."`
}

// Bucket describes a bucket
type Bucket struct {
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ListBucketsResult is the output of s3_list_buckets
type ListBucketsResult struct {
	Buckets []Bucket `json:"buckets"`
	Count   int      `json:"count"`
}

// ListBuckets returns the buckets
func (p *Provider) ListBuckets(ctx context.Context, req *ListBucketsRequest) (*ListBucketsResult, error) {
	out, err := p.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list buckets")
	}
	res := &ListBucketsResult{Buckets: []Bucket{}}
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		if req.Prefix != "" && !strings.HasPrefix(name, req.Prefix) {
			continue
		}
		res.Buckets = append(res.Buckets, Bucket{Name: name, CreatedAt: b.CreationDate})
	}
	res.Count = len(res.Buckets)
	return res, nil
}

// ListObjectsRequest is the input of s3_list_objects
type ListObjectsRequest struct {
	Bucket    string `json:"bucket" jsonschema:"title=Bucket,description=The bucket name." validate:"required"`
	Prefix    string `json:"prefix,omitempty" jsonschema:"title=Prefix,description=Optional key prefix."`
	Delimiter string `json:"delimiter,omitempty" jsonschema:"title=Delimiter,description=Optional delimiter like / to group keys into common prefixes."`
	MaxKeys   int    `json:"max_keys,omitempty" jsonschema:"title=Max Keys,description=Maximum objects to return; defaults to 100." validate:"gte=0,lte=5000"`
}

// Object describes an object
type Object struct {
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	StorageClass string     `json:"storage_class,omitempty"`
	ETag         string     `json:"etag,omitempty"`
}

// ListObjectsResult is the output of s3_list_objects
type ListObjectsResult struct {
	Bucket         string   `json:"bucket"`
	Objects        []Object `json:"objects"`
	CommonPrefixes []string `json:"common_prefixes,omitempty"`
	Count          int      `json:"count"`
	Truncated      bool     `json:"truncated"`
}

// ListObjects follows the continuation token until max keys
func (p *Provider) ListObjects(ctx context.Context, req *ListObjectsRequest) (*ListObjectsResult, error) {
	maxKeys := values.NumbersCoalesce(req.MaxKeys, 100)
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(req.Bucket),
		MaxKeys: aws.Int32(int32(min(maxKeys, 1000))),
	}
	if req.Prefix != "" {
		input.Prefix = aws.String(req.Prefix)
	}
	if req.Delimiter != "" {
		input.Delimiter = aws.String(req.Delimiter)
	}

	res := &ListObjectsResult{
		Bucket:  req.Bucket,
		Objects: []Object{},
	}
	for {
		out, err := p.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list objects in %s", req.Bucket)
		}
		for _, o := range out.Contents {
			if len(res.Objects) >= maxKeys {
				res.Truncated = true
				break
			}
			res.Objects = append(res.Objects, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: o.LastModified,
				StorageClass: string(o.StorageClass),
				ETag:         strings.Trim(aws.ToString(o.ETag), `"`),
			})
		}
		for _, cp := range out.CommonPrefixes {
			res.CommonPrefixes = append(res.CommonPrefixes, aws.ToString(cp.Prefix))
		}
		if res.Truncated || !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		if len(res.Objects) >= maxKeys {
			res.Truncated = true
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	res.Count = len(res.Objects)
	return res, nil
}

// GetObjectRequest is the input of s3_get_object
type GetObjectRequest struct {
	Bucket   string `json:"bucket" jsonschema:"title=Bucket,description=The bucket name." validate:"required"`
	Key      string `json:"key" jsonschema:"title=Key,description=The object key." validate:"required"`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"title=Max Bytes,description=Maximum bytes to read; defaults to 1MB." validate:"gte=0"`
}

// GetObjectResult is the output of s3_get_object
type GetObjectResult struct {
	Bucket       string     `json:"bucket"`
	Key          string     `json:"key"`
	ContentType  string     `json:"content_type,omitempty"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Content      string     `json:"content"`
	Truncated    bool       `json:"truncated"`
}

// GetObject returns the text content of the object
func (p *Provider) GetObject(ctx context.Context, req *GetObjectRequest) (*GetObjectResult, error) {
	maxBytes := values.NumbersCoalesce(req.MaxBytes, defaultMaxBytes)

	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get object s3://%s/%s", req.Bucket, req.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, int64(maxBytes)+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read object")
	}
	truncated := len(data) > maxBytes
	if truncated {
		data = data[:maxBytes]
	}

	contentType := aws.ToString(out.ContentType)
	if !IsText(contentType, data) {
		return nil, tools.InvalidInput("object s3://%s/%s is not text (%s): use %s to download it", req.Bucket, req.Key, contentType, ToolPresignURL)
	}

	return &GetObjectResult{
		Bucket:       req.Bucket,
		Key:          req.Key,
		ContentType:  contentType,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: out.LastModified,
		Content:      string(data),
		Truncated:    truncated,
	}, nil
}

// IsText returns true for text content types, or valid UTF-8 content
func IsText(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "xml"),
		strings.Contains(ct, "yaml"),
		strings.Contains(ct, "csv"):
		return true
	case strings.HasPrefix(ct, "image/"),
		strings.HasPrefix(ct, "audio/"),
		strings.HasPrefix(ct, "video/"),
		ct == "application/pdf",
		ct == "application/zip",
		ct == "application/gzip":
		return false
	}
	// the last rune may be cut by the limit
	for i := 0; i < utf8.UTFMax && len(data) > 0 && !utf8.Valid(data); i++ {
		data = data[:len(data)-1]
	}
	return utf8.Valid(data) && !bytes.ContainsRune(data, 0)
}

// PutObjectRequest is the input of s3_put_object
type PutObjectRequest struct {
	Bucket      string `json:"bucket" jsonschema:"title=Bucket,description=The bucket name." validate:"required"`
	Key         string `json:"key" jsonschema:"title=Key,description=The object key." validate:"required"`
	Content     string `json:"content" jsonschema:"title=Content,description=The text content to write."`
	ContentType string `json:"content_type,omitempty" jsonschema:"title=Content Type,description=The content type; defaults to text/plain."`
}

// PutObjectResult is the output of s3_put_object
type PutObjectResult struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ETag      string `json:"etag,omitempty"`
	VersionID string `json:"version_id,omitempty"`
	Bytes     int    `json:"bytes"`
}

// PutObject writes the content
func (p *Provider) PutObject(ctx context.Context, req *PutObjectRequest) (*PutObjectResult, error) {
	return p.Upload(ctx, req.Bucket, req.Key, []byte(req.Content), values.StringsCoalesce(req.ContentType, "text/plain; charset=utf-8"))
}

// Upload writes the object
func (p *Provider) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (*PutObjectResult, error) {
	out, err := p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to put object s3://%s/%s", bucket, key)
	}
	return &PutObjectResult{
		Bucket:    bucket,
		Key:       key,
		ETag:      strings.Trim(aws.ToString(out.ETag), `"`),
		VersionID: aws.ToString(out.VersionId),
		Bytes:     len(body),
	}, nil
}

// PresignURLRequest is the input of s3_presign_url
type PresignURLRequest struct {
	Bucket        string `json:"bucket" jsonschema:"title=Bucket,description=The bucket name." validate:"required"`
	Key           string `json:"key" jsonschema:"title=Key,description=The object key." validate:"required"`
	Method        string `json:"method,omitempty" jsonschema:"title=Method,description=GET to download or PUT to upload; defaults to GET." validate:"omitempty,oneof=GET PUT get put"`
	ExpiryMinutes int    `json:"expiry_minutes,omitempty" jsonschema:"title=Expiry Minutes,description=URL expiry in minutes; defaults to 15; maximum 7 days." validate:"gte=0,lte=10080"`
}

// PresignURLResult is the output of s3_presign_url
type PresignURLResult struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PresignURL returns the presigned URL
func (p *Provider) PresignURL(ctx context.Context, req *PresignURLRequest) (*PresignURLResult, error) {
	expiry := time.Duration(min(values.NumbersCoalesce(req.ExpiryMinutes, defaultExpiryMinutes), maxExpiryMinutes)) * time.Minute
	withExpiry := func(o *s3.PresignOptions) {
		o.Expires = expiry
	}

	method := strings.ToUpper(values.StringsCoalesce(req.Method, "GET"))
	var (
		r   *v4.PresignedHTTPRequest
		err error
	)
	if method == "PUT" {
		r, err = p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		}, withExpiry)
	} else {
		r, err = p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		}, withExpiry)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to presign s3://%s/%s", req.Bucket, req.Key)
	}

	return &PresignURLResult{
		URL:       r.URL,
		Method:    method,
		ExpiresAt: tools.NowFunc().UTC().Add(expiry).Truncate(time.Second),
	}, nil
}
