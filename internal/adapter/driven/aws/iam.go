package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// iamRegion is recorded for IAM users, which are not regional.
const iamRegion = "global"

var _ driven.ResourceSource = (*IAMSource)(nil)

// IAMSource lists the account's IAM users.
type IAMSource struct {
	api     iam.ListUsersAPIClient
	timeout time.Duration
}

// NewIAMSource lists IAM users through api.
func NewIAMSource(api iam.ListUsersAPIClient, timeout time.Duration) *IAMSource {
	return &IAMSource{api: api, timeout: timeout}
}

func (s *IAMSource) Kind() model.ServiceKind { return model.ServiceIAM }

func (s *IAMSource) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := []model.NormalizedResource{}
	p := iam.NewListUsersPaginator(s.api, &iam.ListUsersInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, Classify(model.ServiceIAM, err)
		}
		for _, u := range page.Users {
			nr, err := normalizeUser(u)
			if err != nil {
				return nil, Classify(model.ServiceIAM, err)
			}
			out = append(out, nr)
		}
	}

	return out, nil
}

func normalizeUser(u iamtypes.User) (model.NormalizedResource, error) {
	a := attrs{}
	a.str("arn", u.Arn)
	a.str("path", u.Path)
	a.str("user_name", u.UserName)
	a.when("create_date", u.CreateDate)
	a.when("password_last_used", u.PasswordLastUsed)

	bag, err := a.withRaw(u)
	if err != nil {
		return model.NormalizedResource{}, err
	}

	return model.NormalizedResource{
		Kind:       model.ServiceIAM,
		ExternalID: awssdk.ToString(u.UserId),
		Name:       awssdk.ToString(u.UserName),
		Region:     iamRegion,
		Attributes: bag,
	}, nil
}
