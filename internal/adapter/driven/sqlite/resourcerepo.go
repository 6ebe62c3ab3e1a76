package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResourceStore = (*ResourceRepo)(nil)

// ResourceRepo is the SQLite implementation of the ResourceStore port interface.
type ResourceRepo struct {
	db *DB
}

// NewResourceRepo creates a new ResourceRepo backed by the given DB.
func NewResourceRepo(db *DB) *ResourceRepo {
	return &ResourceRepo{db: db}
}

type storedResource struct {
	name       string
	region     string
	attributes string
	status     model.ResourceStatus
}

// Reconcile diffs fetched against the stored rows of one (account, kind) pair
// and applies the result in a single transaction.
func (r *ResourceRepo) Reconcile(
	ctx context.Context,
	accountID string,
	kind model.ServiceKind,
	fetched []model.NormalizedResource,
	seenAt time.Time,
) (model.ReconcileResult, error) {
	var res model.ReconcileResult

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const selectQuery = `
		SELECT external_id, name, region, attributes, status
		FROM resources
		WHERE account_id = ? AND service_kind = ?
	`
	rows, err := tx.QueryContext(ctx, selectQuery, accountID, kind)
	if err != nil {
		return res, fmt.Errorf("query stored %s resources: %w", kind, err)
	}

	stored := make(map[string]storedResource)
	for rows.Next() {
		var id string
		var s storedResource
		if err := rows.Scan(&id, &s.name, &s.region, &s.attributes, &s.status); err != nil {
			rows.Close()
			return res, fmt.Errorf("scan stored resource: %w", err)
		}
		stored[id] = s
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return res, fmt.Errorf("iterate stored resources: %w", err)
	}
	rows.Close()

	const upsertQuery = `
		INSERT INTO resources (account_id, service_kind, external_id, name, region, attributes, status, first_seen, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, 'present', ?, ?)
		ON CONFLICT(account_id, service_kind, external_id) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			attributes = excluded.attributes,
			status = 'present',
			last_seen_at = excluded.last_seen_at
	`

	seen := formatTime(seenAt)
	observed := make(map[string]struct{}, len(fetched))
	for _, nr := range fetched {
		if nr.ExternalID == "" {
			return res, fmt.Errorf("%s resource with empty external id", kind)
		}
		// Pages can overlap; the first occurrence wins.
		if _, dup := observed[nr.ExternalID]; dup {
			continue
		}
		observed[nr.ExternalID] = struct{}{}

		attrs, err := encodeAttributes(nr.Attributes)
		if err != nil {
			return res, fmt.Errorf("encode attributes of %s: %w", nr.ExternalID, err)
		}

		prev, exists := stored[nr.ExternalID]
		switch {
		case !exists || prev.status == model.ResourceRemoved:
			res.Inserted++
		case prev.name == nr.Name && prev.region == nr.Region && prev.attributes == attrs:
			res.Unchanged++
		default:
			res.Updated++
		}

		if _, err := tx.ExecContext(ctx, upsertQuery,
			accountID, kind, nr.ExternalID, nr.Name, nr.Region, attrs, seen, seen,
		); err != nil {
			return res, fmt.Errorf("upsert %s resource %s: %w", kind, nr.ExternalID, err)
		}
	}

	// last_seen_at is left alone so the removal time stays inferable.
	const removeQuery = `
		UPDATE resources SET status = 'removed'
		WHERE account_id = ? AND service_kind = ? AND external_id = ?
	`
	for id, s := range stored {
		if s.status != model.ResourcePresent {
			continue
		}
		if _, ok := observed[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, removeQuery, accountID, kind, id); err != nil {
			return res, fmt.Errorf("mark %s resource %s removed: %w", kind, id, err)
		}
		res.Removed++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s reconciliation: %w", kind, err)
	}

	return res, nil
}

// List returns resources matching filter ordered by kind and external id. It
// only touches the local database.
func (r *ResourceRepo) List(ctx context.Context, filter model.ResourceFilter) ([]model.Resource, error) {
	var (
		where = []string{"account_id = ?"}
		args  = []any{filter.AccountID}
	)
	if filter.Kind != "" {
		where = append(where, "service_kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.IncludeRemoved {
		where = append(where, "status = 'present'")
	}

	query := `
		SELECT account_id, service_kind, external_id, name, region, attributes, status, first_seen, last_seen_at
		FROM resources
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY service_kind, external_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources for account %s: %w", filter.AccountID, err)
	}
	defer rows.Close()

	resources := []model.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}

	return resources, nil
}

// PruneRemoved permanently deletes removed rows whose last_seen_at is before
// the cutoff and returns how many were deleted.
func (r *ResourceRepo) PruneRemoved(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM resources WHERE status = 'removed' AND last_seen_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune removed resources: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

func scanResource(s scanner) (*model.Resource, error) {
	var (
		res                 model.Resource
		attrs               string
		firstSeen, lastSeen string
	)

	err := s.Scan(&res.AccountID, &res.Kind, &res.ExternalID, &res.Name, &res.Region,
		&attrs, &res.Status, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrs), &res.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", res.ExternalID, err)
	}
	if res.Attributes == nil {
		res.Attributes = model.Attributes{}
	}
	if res.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if res.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}

	return &res, nil
}

// encodeAttributes produces a canonical JSON document; encoding/json sorts map
// keys, so equal bags always encode to equal strings.
func encodeAttributes(attrs model.Attributes) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
