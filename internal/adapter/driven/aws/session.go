// Package aws implements the remote resource sources and the identity prober
// on top of aws-sdk-go-v2.
package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// DefaultTimeout bounds one FetchAll or Probe call.
const DefaultTimeout = 60 * time.Second

// Options configure sessions built by the factory and prober.
type Options struct {
	// Timeout bounds each FetchAll (all pages) and each Probe.
	Timeout time.Duration
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// newSessionConfig builds the request-scoped client context for one sync or
// probe. Credentials are static and never read from the environment. SDK
// retries are disabled so the caller's retry policy is the only one.
func newSessionConfig(ctx context.Context, region string, cred model.Credential, opts Options) (awssdk.Config, error) {
	provider := credentials.NewStaticCredentialsProvider(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(awssdk.NewCredentialsCache(provider)),
		config.WithRetryer(func() awssdk.Retryer { return awssdk.NopRetryer{} }),
	)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if opts.Endpoint != "" {
		cfg.BaseEndpoint = awssdk.String(opts.Endpoint)
	}

	return cfg, nil
}
