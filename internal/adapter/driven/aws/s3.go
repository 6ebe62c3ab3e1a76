package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.ResourceSource = (*S3Source)(nil)

// S3Source lists the account's buckets. Buckets are global, so the region of
// each row is the bucket's own region when S3 reports it.
type S3Source struct {
	api     s3.ListBucketsAPIClient
	region  string
	timeout time.Duration
}

// NewS3Source lists buckets through api.
func NewS3Source(api s3.ListBucketsAPIClient, region string, timeout time.Duration) *S3Source {
	return &S3Source{api: api, region: region, timeout: timeout}
}

func (s *S3Source) Kind() model.ServiceKind { return model.ServiceS3 }

func (s *S3Source) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := []model.NormalizedResource{}
	p := s3.NewListBucketsPaginator(s.api, &s3.ListBucketsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, Classify(model.ServiceS3, err)
		}
		for _, b := range page.Buckets {
			nr, err := normalizeBucket(b, s.region)
			if err != nil {
				return nil, Classify(model.ServiceS3, err)
			}
			out = append(out, nr)
		}
	}

	return out, nil
}

func normalizeBucket(b s3types.Bucket, fallbackRegion string) (model.NormalizedResource, error) {
	name := awssdk.ToString(b.Name)
	region := awssdk.ToString(b.BucketRegion)
	if region == "" {
		region = fallbackRegion
	}

	a := attrs{}
	a.when("creation_date", b.CreationDate)
	a.str("bucket_region", b.BucketRegion)

	bag, err := a.withRaw(b)
	if err != nil {
		return model.NormalizedResource{}, err
	}

	return model.NormalizedResource{
		Kind:       model.ServiceS3,
		ExternalID: name,
		Name:       name,
		Region:     region,
		Attributes: bag,
	}, nil
}
