package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// cascades; must be called with the lock held

func deleteGrade(t tables, id string) {
	delete(t.grades, id)
	for sid, sec := range t.sections {
		if sec.GradeID == id {
			deleteSection(t, sid)
		}
	}
}

func deleteSection(t tables, id string) {
	delete(t.sections, id)
	for sid, std := range t.students {
		if std.SectionID == id {
			deleteStudent(t, sid)
		}
	}
	for aid, asg := range t.assignments {
		if asg.SectionID == id {
			delete(t.assignments, aid)
		}
	}
}

func deleteSubject(t tables, id string) {
	delete(t.subjects, id)
	for aid, asg := range t.assignments {
		if asg.SubjectID == id {
			delete(t.assignments, aid)
		}
	}
}

func (repo *academicRepository) CreateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.grades {
		if other.SchoolID == grd.SchoolID && other.Name == grd.Name {
			return academic.Grade{}, academic.ErrGradeExists
		}
	}
	grd.ID = newID()
	repo.db.t.grades[grd.ID] = grd
	return grd, nil
}

func (repo *academicRepository) GetGrade(ctx context.Context, id string) (academic.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grd, ok := repo.db.t.grades[id]; ok {
		return grd, nil
	}
	return academic.Grade{}, academic.ErrGradeNotFound
}

func (repo *academicRepository) QueryGrades(ctx context.Context, schoolID string) ([]academic.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]academic.Grade, 0)
	for _, grd := range repo.db.t.grades {
		if schoolID == "" || grd.SchoolID == schoolID {
			grades = append(grades, grd)
		}
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].Name < grades[j].Name })
	return grades, nil
}

func (repo *academicRepository) UpdateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.grades[grd.ID]; !ok {
		return academic.Grade{}, academic.ErrGradeNotFound
	}
	for _, other := range repo.db.t.grades {
		if other.ID != grd.ID && other.SchoolID == grd.SchoolID && other.Name == grd.Name {
			return academic.Grade{}, academic.ErrGradeExists
		}
	}
	repo.db.t.grades[grd.ID] = grd
	return grd, nil
}

func (repo *academicRepository) DeleteGrades(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		deleteGrade(repo.db.t, id)
	}
	return nil
}

func (repo *academicRepository) CreateSection(ctx context.Context, sec academic.Section) (academic.Section, error) {
	defer repo.db.lockWrite(ctx)()

	grd, ok := repo.db.t.grades[sec.GradeID]
	if !ok {
		return academic.Section{}, academic.ErrGradeNotFound
	}
	for _, other := range repo.db.t.sections {
		if other.GradeID == sec.GradeID && other.Name == sec.Name {
			return academic.Section{}, academic.ErrSectionExists
		}
	}
	sec.ID = newID()
	sec.SchoolID = grd.SchoolID
	repo.db.t.sections[sec.ID] = sec
	return sec, nil
}

func (repo *academicRepository) GetSection(ctx context.Context, id string) (academic.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sec, ok := repo.db.t.sections[id]; ok {
		return sec, nil
	}
	return academic.Section{}, academic.ErrSectionNotFound
}

func (repo *academicRepository) QuerySections(ctx context.Context, gradeID string) ([]academic.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sections := make([]academic.Section, 0)
	for _, sec := range repo.db.t.sections {
		if gradeID == "" || sec.GradeID == gradeID {
			sections = append(sections, sec)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Name < sections[j].Name })
	return sections, nil
}

func (repo *academicRepository) UpdateSection(ctx context.Context, sec academic.Section) (academic.Section, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.sections[sec.ID]; !ok {
		return academic.Section{}, academic.ErrSectionNotFound
	}
	grd, ok := repo.db.t.grades[sec.GradeID]
	if !ok {
		return academic.Section{}, academic.ErrGradeNotFound
	}
	for _, other := range repo.db.t.sections {
		if other.ID != sec.ID && other.GradeID == sec.GradeID && other.Name == sec.Name {
			return academic.Section{}, academic.ErrSectionExists
		}
	}
	sec.SchoolID = grd.SchoolID
	repo.db.t.sections[sec.ID] = sec
	return sec, nil
}

func (repo *academicRepository) DeleteSections(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		deleteSection(repo.db.t, id)
	}
	return nil
}

func (repo *academicRepository) CreateSubject(ctx context.Context, sub academic.Subject) (academic.Subject, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.subjects {
		if other.SchoolID == sub.SchoolID && other.Name == sub.Name {
			return academic.Subject{}, academic.ErrSubjectExists
		}
	}
	sub.ID = newID()
	repo.db.t.subjects[sub.ID] = sub
	return sub, nil
}

func (repo *academicRepository) GetSubject(ctx context.Context, id string) (academic.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.t.subjects[id]; ok {
		return sub, nil
	}
	return academic.Subject{}, academic.ErrSubjectNotFound
}

func (repo *academicRepository) QuerySubjects(ctx context.Context, schoolID string) ([]academic.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]academic.Subject, 0)
	for _, sub := range repo.db.t.subjects {
		if schoolID == "" || sub.SchoolID == schoolID {
			subjects = append(subjects, sub)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *academicRepository) UpdateSubject(ctx context.Context, sub academic.Subject) (academic.Subject, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.subjects[sub.ID]; !ok {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	for _, other := range repo.db.t.subjects {
		if other.ID != sub.ID && other.SchoolID == sub.SchoolID && other.Name == sub.Name {
			return academic.Subject{}, academic.ErrSubjectExists
		}
	}
	repo.db.t.subjects[sub.ID] = sub
	return sub, nil
}

func (repo *academicRepository) DeleteSubjects(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		deleteSubject(repo.db.t, id)
	}
	return nil
}
