// Package mock implements the offline resource sources used for accounts
// without stored credentials.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.SourceFactory = (*Factory)(nil)

// Factory hands out mock sources. Output depends only on the seed, the
// account id and the service kind, so repeated syncs are identical.
type Factory struct {
	seed uint64
}

// NewFactory creates a factory whose sources are deterministic for seed.
func NewFactory(seed uint64) *Factory {
	return &Factory{seed: seed}
}

// Sources ignores cred; mock sources never touch the network.
func (f *Factory) Sources(_ context.Context, account model.Account, _ model.Credential) ([]driven.ResourceSource, error) {
	sources := make([]driven.ResourceSource, 0, len(model.AllServiceKinds))
	for _, kind := range model.AllServiceKinds {
		sources = append(sources, &Source{
			kind:    kind,
			region:  account.Region,
			account: account.ID,
			seed:    f.seed,
		})
	}
	return sources, nil
}

// Source produces a small fixed inventory for one service kind.
type Source struct {
	kind    model.ServiceKind
	region  string
	account string
	seed    uint64
}

var _ driven.ResourceSource = (*Source)(nil)

// NewSource creates one seeded source for kind.
func NewSource(kind model.ServiceKind, accountID, region string, seed uint64) *Source {
	return &Source{kind: kind, region: region, account: accountID, seed: seed}
}

func (s *Source) Kind() model.ServiceKind { return s.kind }

func (s *Source) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewAdapterError(s.kind, model.AdapterNetwork, err)
	}

	rng := rand.New(rand.NewPCG(s.seed, streamFor(s.account, s.kind)))
	n := 2 + rng.IntN(3)

	out := make([]model.NormalizedResource, 0, n)
	for i := range n {
		out = append(out, s.generate(rng, i))
	}
	return out, nil
}

func streamFor(accountID string, kind model.ServiceKind) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(accountID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	return h.Sum64()
}

var (
	instanceTypes = []string{"t3.micro", "t3.small", "m5.large", "c6g.xlarge"}
	runtimes      = []string{"python3.12", "nodejs20.x", "go1.x", "java21"}
	engines       = []string{"postgres", "mysql", "mariadb"}
	names         = []string{"web", "api", "worker", "batch", "reports", "billing"}
)

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

func (s *Source) generate(rng *rand.Rand, i int) model.NormalizedResource {
	name := fmt.Sprintf("%s-%d", pick(rng, names), i+1)
	nr := model.NormalizedResource{
		Kind:   s.kind,
		Region: s.region,
		Name:   name,
		Attributes: model.Attributes{
			"mock": true,
		},
	}

	switch s.kind {
	case model.ServiceEC2:
		nr.ExternalID = fmt.Sprintf("i-%017x", rng.Uint64()>>4)
		nr.Attributes["instance_type"] = pick(rng, instanceTypes)
		nr.Attributes["state"] = pick(rng, []string{"running", "running", "stopped"})
		nr.Attributes["availability_zone"] = s.region + string(rune('a'+rng.IntN(3)))
		nr.Attributes["tags"] = map[string]string{"Name": name}
	case model.ServiceS3:
		nr.ExternalID = fmt.Sprintf("%s-%s-%04d", s.account, name, rng.IntN(10000))
		nr.Name = nr.ExternalID
		nr.Attributes["bucket_region"] = s.region
	case model.ServiceLambda:
		nr.ExternalID = fmt.Sprintf("arn:aws:lambda:%s:000000000000:function:%s", s.region, name)
		nr.Attributes["runtime"] = pick(rng, runtimes)
		nr.Attributes["memory_size"] = 128 << rng.IntN(4)
		nr.Attributes["timeout"] = 3 + rng.IntN(60)
	case model.ServiceRDS:
		nr.ExternalID = name + "-db"
		nr.Name = nr.ExternalID
		nr.Attributes["engine"] = pick(rng, engines)
		nr.Attributes["instance_class"] = "db.t3.micro"
		nr.Attributes["allocated_storage_gb"] = 20 * (1 + rng.IntN(5))
		nr.Attributes["multi_az"] = rng.IntN(2) == 1
	case model.ServiceIAM:
		nr.ExternalID = fmt.Sprintf("AIDAMOCK%012d", rng.Int64N(1_000_000_000_000))
		nr.Region = "global"
		nr.Attributes["arn"] = "arn:aws:iam::000000000000:user/" + name
	default:
		nr.ExternalID = fmt.Sprintf("%s-%d", s.kind, i+1)
	}

	return nr
}
