package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/store"
)

// record is satisfied by every domain record type.
type record interface {
	Validate() error
}

type rowScanner interface {
	Scan(dest ...any) error
}

// table implements the repository contract once for every record type.
// Type-specific behavior is supplied as functions.
type table[T record] struct {
	store *store.Store
	clock domain.Clock

	name   string
	entity domain.EntityType

	// scopeColumn holds the profile scope; "id" for the profiles table itself.
	scopeColumn string
	columns     []string

	scan    func(rowScanner) (T, error)
	values  func(T) (map[string]any, error)
	meta    func(T) domain.Meta
	setMeta func(*T, domain.Meta)
}

func (t *table[T]) selectBuilder() sq.SelectBuilder {
	return sq.Select(t.columns...).From(t.name)
}

func (t *table[T]) queryMany(ctx context.Context, b sq.Sqlizer) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, domain.ApplicationFailure("build "+t.name+" query", err)
	}

	rows, err := t.store.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ApplicationFailure("query "+t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, domain.ApplicationFailure("scan "+t.name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ApplicationFailure("iterate "+t.name, err)
	}
	return out, nil
}

func (t *table[T]) findByID(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := t.queryMany(ctx, t.selectBuilder().Where(sq.Eq{"id": id}))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, domain.NotFound(t.entity, id)
	}
	return rows[0], nil
}

// findByIDs returns the records in the order of ids; missing ids are skipped.
func (t *table[T]) findByIDs(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	rows, err := t.queryMany(ctx, t.selectBuilder().Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]T, len(rows))
	for _, r := range rows {
		byID[t.meta(r).ID] = r
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			delete(byID, id)
		}
	}
	return out, nil
}

func (t *table[T]) findAll(ctx context.Context, profileID string) ([]T, error) {
	return t.queryMany(ctx, t.selectBuilder().
		Where(sq.Eq{t.scopeColumn: profileID}).
		OrderBy("created_at ASC", "id ASC"))
}

// idsWhere returns the ids of rows matching pred, ordered by creation.
func (t *table[T]) idsWhere(ctx context.Context, pred sq.Sqlizer) ([]string, error) {
	query, args, err := sq.Select("id").From(t.name).Where(pred).OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, domain.ApplicationFailure("build "+t.name+" query", err)
	}

	rows, err := t.store.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ApplicationFailure("query "+t.name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ApplicationFailure("scan "+t.name, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ApplicationFailure("iterate "+t.name, err)
	}
	return ids, nil
}

func (t *table[T]) count(ctx context.Context, pred sq.Sqlizer) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(t.name).Where(pred).ToSql()
	if err != nil {
		return 0, domain.ApplicationFailure("build "+t.name+" query", err)
	}
	var n int
	if err := t.store.Querier(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, domain.ApplicationFailure("count "+t.name, err)
	}
	return n, nil
}

func (t *table[T]) exists(ctx context.Context, id string) (bool, error) {
	n, err := t.count(ctx, sq.Eq{"id": id})
	return n > 0, err
}

// save validates v and writes it, moving it along the lifecycle:
// a draft is inserted and becomes persisted; a persisted or mutated value is
// updated and becomes mutated. Deleted values are rejected. Inserts keep a
// set UpdatedAt; updates advance it to the clock.
func (t *table[T]) save(ctx context.Context, v T) (T, error) {
	var zero T
	m := t.meta(v)

	if m.State == domain.StateDeleted {
		return zero, domain.BusinessRule(t.entity, m.ID, "cannot save a deleted record", nil)
	}
	if err := v.Validate(); err != nil {
		return zero, err
	}

	exists, err := t.exists(ctx, m.ID)
	if err != nil {
		return zero, err
	}

	insert := m.State == domain.StateDraft || m.State == ""
	switch {
	case insert && exists:
		return zero, domain.Conflict(t.entity, m.ID, errors.New("id already in use"))
	case !insert && !exists:
		return zero, domain.BusinessRule(t.entity, m.ID, "cannot save a deleted record", nil)
	}

	now := t.clock.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	// An update is stamped with the save time unless the caller set a later one.
	if m.UpdatedAt.IsZero() || (!insert && m.UpdatedAt.Before(now)) {
		m.UpdatedAt = now
	}
	t.setMeta(&v, m)

	values, err := t.values(v)
	if err != nil {
		return zero, domain.ApplicationFailure("encode "+string(t.entity), err)
	}

	var b sq.Sqlizer
	if insert {
		b = sq.Insert(t.name).SetMap(values)
	} else {
		delete(values, "id")
		b = sq.Update(t.name).SetMap(values).Where(sq.Eq{"id": m.ID})
	}
	if err := t.exec(ctx, m.ID, b); err != nil {
		return zero, err
	}

	if insert {
		m.State = domain.StatePersisted
	} else {
		m.State = domain.StateMutated
	}
	t.setMeta(&v, m)
	return v, nil
}

func (t *table[T]) delete(ctx context.Context, id string) error {
	n, err := t.deleteWhere(ctx, sq.Eq{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(t.entity, id)
	}
	return nil
}

func (t *table[T]) deleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return t.deleteWhere(ctx, sq.Eq{"id": ids})
}

func (t *table[T]) deleteWhere(ctx context.Context, pred sq.Sqlizer) (int64, error) {
	query, args, err := sq.Delete(t.name).Where(pred).ToSql()
	if err != nil {
		return 0, domain.ApplicationFailure("build "+t.name+" delete", err)
	}

	res, err := t.store.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, domain.ApplicationFailure("delete "+t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.ApplicationFailure("delete "+t.name, err)
	}
	if n > 0 {
		t.store.MarkChanged(ctx, t.name)
	}
	return n, nil
}

func (t *table[T]) exec(ctx context.Context, id string, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return domain.ApplicationFailure("build "+t.name+" write", err)
	}
	if _, err := t.store.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(t.entity, id, err)
		}
		return domain.ApplicationFailure("write "+t.name, err)
	}
	t.store.MarkChanged(ctx, t.name)
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}

func decodeIDs(s string) ([]string, error) {
	ids := []string{}
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// scanMeta is the common scan prefix: id, profile scope, created_at, updated_at.
func scanMeta(m *domain.Meta, created, updated *int64) []any {
	return []any{&m.ID, &m.ProfileID, created, updated}
}

func finishMeta(m domain.Meta, created, updated int64) domain.Meta {
	m.CreatedAt = decodeTime(created)
	m.UpdatedAt = decodeTime(updated)
	return m
}

func metaValues(m domain.Meta) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"profile_id": m.ProfileID,
		"created_at": encodeTime(m.CreatedAt),
		"updated_at": encodeTime(m.UpdatedAt),
	}
}
