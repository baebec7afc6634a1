package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

type identityRepository struct {
	db *DB
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) *identityRepository {
	return &identityRepository{db: db}
}

// checkUniqueness must be called with the lock held.
func (repo *identityRepository) checkUniqueness(idt identity.Identity) error {
	for _, other := range repo.db.t.identities {
		if other.ID == idt.ID {
			continue
		}
		if other.Email == idt.Email {
			return identity.ErrEmailExists
		}
		if other.Username == idt.Username {
			return identity.ErrUsernameExists
		}
	}
	return nil
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, idt identity.Identity) (identity.Identity, error) {
	defer repo.db.lockWrite(ctx)()

	idt.ID = newID()
	if err := repo.checkUniqueness(idt); err != nil {
		return identity.Identity{}, err
	}
	repo.db.t.identities[idt.ID] = idt
	return idt, nil
}

func (repo *identityRepository) GetIdentity(ctx context.Context, filter identity.GetFilter) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if idt, ok := repo.db.t.identities[filter.ID]; ok {
			return idt, nil
		}
		return identity.Identity{}, identity.ErrNotFound
	}
	for _, idt := range repo.db.t.identities {
		switch {
		case filter.Username != "" && idt.Username == filter.Username,
			filter.Email != "" && idt.Email == filter.Email,
			filter.UsernameOrEmail != "" && (idt.Username == filter.UsernameOrEmail || idt.Email == filter.UsernameOrEmail):
			return idt, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) QueryIdentities(ctx context.Context, filter *identity.QueryFilter, ordering []core.DBOrdering) ([]identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	idts := make([]identity.Identity, 0, len(repo.db.t.identities))
	for _, idt := range repo.db.t.identities {
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !(strings.Contains(idt.Username, search) || strings.Contains(idt.Email, search)) {
					continue
				}
			}
			if filter.Role != "" && idt.Role != filter.Role {
				continue
			}
			if filter.SchoolID != "" && idt.SchoolID != filter.SchoolID {
				continue
			}
		}
		idts = append(idts, idt)
	}

	ordering = core.CleanOrderings(ordering, identity.OrderingFields...)
	sort.SliceStable(idts, func(i, j int) bool {
		for _, ord := range ordering {
			var a, b string
			switch ord.Field {
			case "username":
				a, b = idts[i].Username, idts[j].Username
			case "email":
				a, b = idts[i].Email, idts[j].Email
			case "created_at":
				if !idts[i].CreatedAt.Equal(idts[j].CreatedAt) {
					return idts[i].CreatedAt.Before(idts[j].CreatedAt) == ord.Ascending
				}
				continue
			}
			if a != b {
				return (a < b) == ord.Ascending
			}
		}
		return idts[i].CreatedAt.After(idts[j].CreatedAt) // newest first
	})
	return idts, nil
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, idt identity.Identity) (identity.Identity, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.identities[idt.ID]; !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	if err := repo.checkUniqueness(idt); err != nil {
		return identity.Identity{}, err
	}
	repo.db.t.identities[idt.ID] = idt
	return idt, nil
}

func (repo *identityRepository) DeleteIdentities(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		delete(repo.db.t.identities, id)
		for sid, sch := range repo.db.t.schools {
			if sch.IdentityID == id {
				sch.IdentityID = ""
				repo.db.t.schools[sid] = sch
			}
		}
		for tid, tch := range repo.db.t.teachers {
			if tch.IdentityID == id {
				tch.IdentityID = ""
				repo.db.t.teachers[tid] = tch
			}
		}
		for pid, prt := range repo.db.t.parents {
			if prt.IdentityID == id {
				prt.IdentityID = ""
				repo.db.t.parents[pid] = prt
			}
		}
	}
	return nil
}
