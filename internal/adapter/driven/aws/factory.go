package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.SourceFactory = (*Factory)(nil)

// Factory builds one AWS session per sync and hands out a source per service
// kind, all sharing that session.
type Factory struct {
	opts Options
}

// NewFactory creates a factory that builds SDK-backed sources from opts.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts}
}

// Sources returns the remote sources for account in AllServiceKinds order.
func (f *Factory) Sources(ctx context.Context, account model.Account, cred model.Credential) ([]driven.ResourceSource, error) {
	cfg, err := newSessionConfig(ctx, account.Region, cred, f.opts)
	if err != nil {
		return nil, err
	}

	timeout := f.opts.timeout()
	return []driven.ResourceSource{
		NewEC2Source(ec2.NewFromConfig(cfg), account.Region, timeout),
		NewS3Source(s3.NewFromConfig(cfg, func(o *s3.Options) { o.UsePathStyle = f.opts.Endpoint != "" }), account.Region, timeout),
		NewLambdaSource(lambda.NewFromConfig(cfg), account.Region, timeout),
		NewRDSSource(rds.NewFromConfig(cfg), account.Region, timeout),
		NewIAMSource(iam.NewFromConfig(cfg), timeout),
	}, nil
}
