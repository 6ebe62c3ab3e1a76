package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// ServiceSTS tags errors raised by the identity probe.
const ServiceSTS model.ServiceKind = "sts"

// CallerIdentityAPI is the slice of the STS client the prober needs.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ driven.IdentityProber = (*Prober)(nil)

// Prober checks a credential with sts:GetCallerIdentity, which needs no IAM
// permissions and touches no resources.
type Prober struct {
	opts   Options
	newAPI func(awssdk.Config) CallerIdentityAPI
}

// NewProber creates an STS-backed identity prober.
func NewProber(opts Options) *Prober {
	return &Prober{
		opts:   opts,
		newAPI: func(cfg awssdk.Config) CallerIdentityAPI { return sts.NewFromConfig(cfg) },
	}
}

// Probe calls GetCallerIdentity with cred in region.
func (p *Prober) Probe(ctx context.Context, region string, cred model.Credential) (*model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.timeout())
	defer cancel()

	cfg, err := newSessionConfig(ctx, region, cred, p.opts)
	if err != nil {
		return nil, err
	}

	out, err := p.newAPI(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, Classify(ServiceSTS, err)
	}

	return &model.Identity{
		Account: awssdk.ToString(out.Account),
		ARN:     awssdk.ToString(out.Arn),
		UserID:  awssdk.ToString(out.UserId),
	}, nil
}
