package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/service/dao/criteria"
)

// Service persists approval process instances in Postgres. Each instance is
// one row: the full state as a jsonb document plus a revision column used for
// compare-and-swap writes, so that a stale save fails with dao.ErrConflict
// instead of silently clobbering a concurrent update.
type Service struct {
	pool *pgxpool.Pool
}

var _ dao.Service[string, instance.Instance] = (*Service)(nil)

// Schema is the DDL required by this store. Callers owning migrations can
// apply it themselves; EnsureSchema is a convenience for tests and
// single-binary deployments.
const Schema = `
CREATE TABLE IF NOT EXISTS approval_instances (
    correlation_id TEXT PRIMARY KEY,
    revision       INTEGER     NOT NULL,
    status         TEXT        NOT NULL,
    data           JSONB       NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS approval_instances_status_idx ON approval_instances (status);
`

const uniqueViolation = "23505"

func New(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Service) Save(ctx context.Context, inst *instance.Instance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.CorrelationID == "" {
		return dao.ErrInvalidID
	}

	previous := inst.Revision
	inst.Revision++
	data, err := json.Marshal(inst)
	if err != nil {
		inst.Revision = previous
		return fmt.Errorf("failed to marshal instance %v: %w", inst.CorrelationID, err)
	}

	if previous == 0 {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO approval_instances (correlation_id, revision, status, data) VALUES ($1, $2, $3, $4)`,
			inst.CorrelationID, inst.Revision, inst.Status.String(), data)
		if err != nil {
			inst.Revision = previous
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return dao.ErrConflict
			}
			return fmt.Errorf("failed to insert instance %v: %w", inst.CorrelationID, err)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE approval_instances SET revision = $2, status = $3, data = $4, updated_at = now()
		  WHERE correlation_id = $1 AND revision = $5`,
		inst.CorrelationID, inst.Revision, inst.Status.String(), data, previous)
	if err != nil {
		inst.Revision = previous
		return fmt.Errorf("failed to update instance %v: %w", inst.CorrelationID, err)
	}
	if tag.RowsAffected() == 0 {
		inst.Revision = previous
		return dao.ErrConflict
	}
	return nil
}

func (s *Service) Load(ctx context.Context, id string) (*instance.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM approval_instances WHERE correlation_id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load instance %v: %w", id, err)
	}
	ret := &instance.Instance{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %v: %w", id, err)
	}
	return ret, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM approval_instances WHERE correlation_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance %v: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return dao.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM approval_instances`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var out []*instance.Instance
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, err
		}
		inst := &instance.Instance{}
		if err = json.Unmarshal(data, inst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
		}
		if !criteria.FilterByStatus(inst.Status.String(), parameters) {
			continue
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
