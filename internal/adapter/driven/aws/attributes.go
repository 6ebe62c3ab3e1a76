package aws

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// rawKey holds the full SDK shape so fields this package does not map are
// still kept.
const rawKey = "raw"

// attrs accumulates curated attributes, skipping nil pointers.
type attrs model.Attributes

func (a attrs) str(key string, v *string) {
	if v != nil {
		a[key] = *v
	}
}

func (a attrs) i32(key string, v *int32) {
	if v != nil {
		a[key] = *v
	}
}

func (a attrs) boolean(key string, v *bool) {
	if v != nil {
		a[key] = *v
	}
}

func (a attrs) when(key string, v *time.Time) {
	if v != nil {
		a[key] = v.UTC().Format(time.RFC3339)
	}
}

// withRaw attaches the JSON view of the SDK struct v.
func (a attrs) withRaw(v any) (model.Attributes, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode raw attributes: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode raw attributes: %w", err)
	}
	a[rawKey] = raw
	return model.Attributes(a), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
