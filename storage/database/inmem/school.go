package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.schools {
		if other.Email == sch.Email {
			return school.School{}, school.ErrEmailExists
		}
	}
	sch.ID = newID()
	repo.db.t.schools[sch.ID] = sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.t.schools[id]; ok {
		return sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByEmail(ctx context.Context, email string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.t.schools {
		if sch.Email == email {
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0, len(repo.db.t.schools))
	for _, sch := range repo.db.t.schools {
		if filter != nil && filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !(strings.Contains(strings.ToLower(sch.Name), search) || strings.Contains(sch.Email, search)) {
				continue
			}
		}
		schools = append(schools, sch)
	}

	ordering = core.CleanOrderings(ordering, school.OrderingFields...)
	sort.SliceStable(schools, func(i, j int) bool {
		for _, ord := range ordering {
			var a, b string
			switch ord.Field {
			case "name":
				a, b = schools[i].Name, schools[j].Name
			case "email":
				a, b = schools[i].Email, schools[j].Email
			case "created_at":
				if !schools[i].CreatedAt.Equal(schools[j].CreatedAt) {
					return schools[i].CreatedAt.Before(schools[j].CreatedAt) == ord.Ascending
				}
				continue
			}
			if a != b {
				return (a < b) == ord.Ascending
			}
		}
		return schools[i].CreatedAt.After(schools[j].CreatedAt)
	})
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.schools[sch.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	for _, other := range repo.db.t.schools {
		if other.ID != sch.ID && other.Email == sch.Email {
			return school.School{}, school.ErrEmailExists
		}
	}
	repo.db.t.schools[sch.ID] = sch
	return sch, nil
}

// DeleteSchool cascades like the SQL schema does.
func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	defer repo.db.lockWrite(ctx)()

	t := repo.db.t
	delete(t.schools, id)
	for rid, req := range t.requests {
		if req.SchoolID == id {
			delete(t.requests, rid)
		}
	}
	for iid, idt := range t.identities {
		if idt.SchoolID == id {
			idt.SchoolID = ""
			t.identities[iid] = idt
		}
	}
	for gid, grd := range t.grades {
		if grd.SchoolID == id {
			deleteGrade(t, gid)
		}
	}
	for sid, sub := range t.subjects {
		if sub.SchoolID == id {
			deleteSubject(t, sid)
		}
	}
	for tid, tch := range t.teachers {
		if tch.SchoolID == id {
			deleteTeacher(t, tid)
		}
	}
	for sid, std := range t.students {
		if std.SchoolID == id {
			deleteStudent(t, sid)
		}
	}
	return nil
}

func (repo *schoolRepository) CreateRequest(ctx context.Context, req school.RegistrationRequest) (school.RegistrationRequest, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.schools[req.SchoolID]; !ok {
		return school.RegistrationRequest{}, school.ErrNotFound
	}
	req.ID = newID()
	req.School = nil
	repo.db.t.requests[req.ID] = req
	return req, nil
}

// withSchool must be called with the lock held.
func (repo *schoolRepository) withSchool(req school.RegistrationRequest) school.RegistrationRequest {
	if sch, ok := repo.db.t.schools[req.SchoolID]; ok {
		req.School = &sch
	}
	return req
}

// GetRequest ignores forUpdate: transactions are serialized already.
func (repo *schoolRepository) GetRequest(ctx context.Context, id string, forUpdate bool) (school.RegistrationRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.t.requests[id]; ok {
		return repo.withSchool(req), nil
	}
	return school.RegistrationRequest{}, school.ErrRequestNotFound
}

func (repo *schoolRepository) QueryRequests(ctx context.Context, status school.Status) ([]school.RegistrationRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]school.RegistrationRequest, 0, len(repo.db.t.requests))
	for _, req := range repo.db.t.requests {
		if status == "" || req.Status == status {
			reqs = append(reqs, repo.withSchool(req))
		}
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *schoolRepository) UpdateRequest(ctx context.Context, req school.RegistrationRequest) (school.RegistrationRequest, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.requests[req.ID]; !ok {
		return school.RegistrationRequest{}, school.ErrRequestNotFound
	}
	req.School = nil
	repo.db.t.requests[req.ID] = req
	return req, nil
}

func (repo *schoolRepository) DeleteRequests(ctx context.Context, schoolID string) error {
	defer repo.db.lockWrite(ctx)()

	for id, req := range repo.db.t.requests {
		if req.SchoolID == schoolID {
			delete(repo.db.t.requests, id)
		}
	}
	return nil
}
