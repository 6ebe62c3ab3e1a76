package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.ResourceSource = (*RDSSource)(nil)

// RDSSource lists the database instances of one region.
type RDSSource struct {
	api     rds.DescribeDBInstancesAPIClient
	region  string
	timeout time.Duration
}

// NewRDSSource lists database instances in region through api.
func NewRDSSource(api rds.DescribeDBInstancesAPIClient, region string, timeout time.Duration) *RDSSource {
	return &RDSSource{api: api, region: region, timeout: timeout}
}

func (s *RDSSource) Kind() model.ServiceKind { return model.ServiceRDS }

func (s *RDSSource) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := []model.NormalizedResource{}
	p := rds.NewDescribeDBInstancesPaginator(s.api, &rds.DescribeDBInstancesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, Classify(model.ServiceRDS, err)
		}
		for _, db := range page.DBInstances {
			nr, err := normalizeDBInstance(db, s.region)
			if err != nil {
				return nil, Classify(model.ServiceRDS, err)
			}
			out = append(out, nr)
		}
	}

	return out, nil
}

func normalizeDBInstance(db rdstypes.DBInstance, region string) (model.NormalizedResource, error) {
	id := awssdk.ToString(db.DBInstanceIdentifier)

	a := attrs{}
	a.str("arn", db.DBInstanceArn)
	a.str("engine", db.Engine)
	a.str("engine_version", db.EngineVersion)
	a.str("instance_class", db.DBInstanceClass)
	a.str("status", db.DBInstanceStatus)
	a.str("availability_zone", db.AvailabilityZone)
	a.i32("allocated_storage_gb", db.AllocatedStorage)
	a.boolean("multi_az", db.MultiAZ)
	a.boolean("storage_encrypted", db.StorageEncrypted)
	if db.Endpoint != nil {
		a.str("endpoint_address", db.Endpoint.Address)
		a.i32("endpoint_port", db.Endpoint.Port)
	}

	bag, err := a.withRaw(db)
	if err != nil {
		return model.NormalizedResource{}, err
	}

	return model.NormalizedResource{
		Kind:       model.ServiceRDS,
		ExternalID: id,
		Name:       id,
		Region:     region,
		Attributes: bag,
	}, nil
}
