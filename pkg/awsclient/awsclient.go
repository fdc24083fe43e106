// Package awsclient loads the shared AWS SDK configuration for the AWS tools.
package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/x/values"
)

// Options for Load
type Options struct {
	// Credentials overrides the default credentials chain
	Credentials aws.CredentialsProvider
	// Retries overrides the SDK max attempts
	Retries int
}

// Option configures Load
type Option func(*Options)

// WithStaticCredentials uses static access keys, for example with localstack
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	}
}

// WithRetries sets the SDK max attempts
func WithRetries(attempts int) Option {
	return func(o *Options) {
		o.Retries = attempts
	}
}

// Load returns aws.Config for the configured region, profile and endpoint
func Load(ctx context.Context, cfg config.AWS, opts ...Option) (aws.Config, error) {
	o := new(Options)
	for _, opt := range opts {
		opt(o)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if o.Credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(o.Credentials))
	}
	if o.Retries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(o.Retries))
	}

	ac, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS config")
	}
	if cfg.Endpoint != "" {
		ac.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return ac, nil
}

// ForRegion returns a copy of the config with the region set,
// used for the services that are available only in specific regions.
func ForRegion(ac aws.Config, region string) aws.Config {
	cp := ac.Copy()
	cp.Region = values.StringsCoalesce(region, ac.Region)
	return cp
}
