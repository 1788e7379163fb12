package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/liftlog/internal/domain"
)

// ProfileRepository persists Profile records.
type ProfileRepository struct {
	t *table[domain.Profile]
}

func newProfileRepository(base tableBase) *ProfileRepository {
	return &ProfileRepository{t: &table[domain.Profile]{
		store:       base.store,
		clock:       base.clock,
		name:        TableProfiles,
		entity:      domain.EntityProfile,
		scopeColumn: "id",
		// A profile is its own scope, so id is selected twice.
		columns: []string{"id", "id", "created_at", "updated_at", "name", "active_plan_id"},
		scan: func(r rowScanner) (domain.Profile, error) {
			var m domain.Meta
			var f domain.ProfileFields
			var created, updated int64
			dest := append(scanMeta(&m, &created, &updated), &f.Name, &f.ActivePlanID)
			if err := r.Scan(dest...); err != nil {
				return domain.Profile{}, err
			}
			return domain.HydrateProfile(finishMeta(m, created, updated), f), nil
		},
		values: func(p domain.Profile) (map[string]any, error) {
			v := metaValues(p.Meta)
			delete(v, "profile_id")
			v["name"] = p.Name
			v["active_plan_id"] = p.ActivePlanID
			return v, nil
		},
		meta:    func(p domain.Profile) domain.Meta { return p.Meta },
		setMeta: func(p *domain.Profile, m domain.Meta) { p.Meta = m },
	}}
}

// Save inserts a draft profile or updates a persisted one.
func (r *ProfileRepository) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	return r.t.save(ctx, p)
}

// FindByID returns the profile with id.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (domain.Profile, error) {
	return r.t.findByID(ctx, id)
}

// FindByIDs returns the profiles in the order of ids, skipping missing ones.
func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Profile, error) {
	return r.t.findByIDs(ctx, ids)
}

// FindAll returns the profile scope itself as a one-element list, or an
// empty list when it does not exist.
func (r *ProfileRepository) FindAll(ctx context.Context, profileID string) ([]domain.Profile, error) {
	return r.t.findAll(ctx, profileID)
}

// Delete removes the profile row only.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// IDsWithActivePlan returns the profiles whose active plan is one of planIDs.
func (r *ProfileRepository) IDsWithActivePlan(ctx context.Context, planIDs []string) ([]string, error) {
	if len(planIDs) == 0 {
		return []string{}, nil
	}
	return r.t.idsWhere(ctx, sq.Eq{"active_plan_id": planIDs})
}
