package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.ResourceSource = (*LambdaSource)(nil)

// LambdaSource lists the functions of one region.
type LambdaSource struct {
	api     lambda.ListFunctionsAPIClient
	region  string
	timeout time.Duration
}

// NewLambdaSource lists functions in region through api.
func NewLambdaSource(api lambda.ListFunctionsAPIClient, region string, timeout time.Duration) *LambdaSource {
	return &LambdaSource{api: api, region: region, timeout: timeout}
}

func (s *LambdaSource) Kind() model.ServiceKind { return model.ServiceLambda }

func (s *LambdaSource) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := []model.NormalizedResource{}
	p := lambda.NewListFunctionsPaginator(s.api, &lambda.ListFunctionsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, Classify(model.ServiceLambda, err)
		}
		for _, fn := range page.Functions {
			nr, err := normalizeFunction(fn, s.region)
			if err != nil {
				return nil, Classify(model.ServiceLambda, err)
			}
			out = append(out, nr)
		}
	}

	return out, nil
}

// normalizeFunction keeps environment variable names but never their values,
// which routinely hold secrets.
func normalizeFunction(fn lambdatypes.FunctionConfiguration, region string) (model.NormalizedResource, error) {
	name := awssdk.ToString(fn.FunctionName)
	id := awssdk.ToString(fn.FunctionArn)
	if id == "" {
		id = name
	}

	a := attrs{
		"runtime":   string(fn.Runtime),
		"code_size": fn.CodeSize,
	}
	a.str("function_arn", fn.FunctionArn)
	a.str("handler", fn.Handler)
	a.str("description", fn.Description)
	a.str("last_modified", fn.LastModified)
	a.str("version", fn.Version)
	a.i32("memory_size", fn.MemorySize)
	a.i32("timeout", fn.Timeout)
	if fn.Environment != nil {
		a["environment_keys"] = sortedKeys(fn.Environment.Variables)
	}

	redacted := fn
	redacted.Environment = nil
	bag, err := a.withRaw(redacted)
	if err != nil {
		return model.NormalizedResource{}, err
	}

	return model.NormalizedResource{
		Kind:       model.ServiceLambda,
		ExternalID: id,
		Name:       name,
		Region:     region,
		Attributes: bag,
	}, nil
}
