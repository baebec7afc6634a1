package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

// cascades; must be called with the lock held

func deleteTeacher(t tables, id string) {
	delete(t.teachers, id)
	for aid, asg := range t.assignments {
		if asg.TeacherID == id {
			delete(t.assignments, aid)
		}
	}
}

func deleteStudent(t tables, id string) {
	delete(t.students, id)
	for pid, prt := range t.parents {
		if prt.StudentID == id {
			delete(t.parents, pid)
		}
	}
}

func (repo *rosterRepository) CreateTeacher(ctx context.Context, tch roster.Teacher) (roster.Teacher, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.teachers {
		if other.Email == tch.Email {
			return roster.Teacher{}, roster.ErrTeacherExists
		}
	}
	tch.ID = newID()
	repo.db.t.teachers[tch.ID] = tch
	return tch, nil
}

func (repo *rosterRepository) GetTeacher(ctx context.Context, id string) (roster.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tch, ok := repo.db.t.teachers[id]; ok {
		return tch, nil
	}
	return roster.Teacher{}, roster.ErrTeacherNotFound
}

func (repo *rosterRepository) QueryTeachers(ctx context.Context, schoolID string) ([]roster.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]roster.Teacher, 0)
	for _, tch := range repo.db.t.teachers {
		if schoolID == "" || tch.SchoolID == schoolID {
			teachers = append(teachers, tch)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Email < teachers[j].Email })
	return teachers, nil
}

func (repo *rosterRepository) UpdateTeacher(ctx context.Context, tch roster.Teacher) (roster.Teacher, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.teachers[tch.ID]; !ok {
		return roster.Teacher{}, roster.ErrTeacherNotFound
	}
	for _, other := range repo.db.t.teachers {
		if other.ID != tch.ID && other.Email == tch.Email {
			return roster.Teacher{}, roster.ErrTeacherExists
		}
	}
	repo.db.t.teachers[tch.ID] = tch
	return tch, nil
}

func (repo *rosterRepository) DeleteTeachers(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		deleteTeacher(repo.db.t, id)
	}
	return nil
}

func (repo *rosterRepository) CreateParent(ctx context.Context, prt roster.Parent) (roster.Parent, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.students[prt.StudentID]; !ok {
		return roster.Parent{}, roster.ErrStudentNotFound
	}
	for _, other := range repo.db.t.parents {
		if other.Email == prt.Email {
			return roster.Parent{}, roster.ErrParentExists
		}
	}
	prt.ID = newID()
	repo.db.t.parents[prt.ID] = prt
	return prt, nil
}

func (repo *rosterRepository) GetParent(ctx context.Context, id string) (roster.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prt, ok := repo.db.t.parents[id]; ok {
		return prt, nil
	}
	return roster.Parent{}, roster.ErrParentNotFound
}

func (repo *rosterRepository) QueryParents(ctx context.Context, filter roster.ParentFilter) ([]roster.Parent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	parents := make([]roster.Parent, 0)
	for _, prt := range repo.db.t.parents {
		if filter.SchoolID != "" && prt.SchoolID != filter.SchoolID {
			continue
		}
		if filter.StudentID != "" && prt.StudentID != filter.StudentID {
			continue
		}
		parents = append(parents, prt)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].Email < parents[j].Email })
	return parents, nil
}

func (repo *rosterRepository) UpdateParent(ctx context.Context, prt roster.Parent) (roster.Parent, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.parents[prt.ID]; !ok {
		return roster.Parent{}, roster.ErrParentNotFound
	}
	if _, ok := repo.db.t.students[prt.StudentID]; !ok {
		return roster.Parent{}, roster.ErrStudentNotFound
	}
	for _, other := range repo.db.t.parents {
		if other.ID != prt.ID && other.Email == prt.Email {
			return roster.Parent{}, roster.ErrParentExists
		}
	}
	repo.db.t.parents[prt.ID] = prt
	return prt, nil
}

func (repo *rosterRepository) DeleteParents(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		delete(repo.db.t.parents, id)
	}
	return nil
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.students {
		if other.SchoolID == std.SchoolID && other.StudentID == std.StudentID {
			return roster.Student{}, roster.ErrStudentExists
		}
	}
	std.ID = newID()
	repo.db.t.students[std.ID] = std
	return std, nil
}

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if std, ok := repo.db.t.students[id]; ok {
		return std, nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) GetStudentByRef(ctx context.Context, schoolID, studentRef string) (roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, std := range repo.db.t.students {
		if std.SchoolID == schoolID && std.StudentID == studentRef {
			return std, nil
		}
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) QueryStudents(ctx context.Context, filter roster.StudentFilter) ([]roster.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]roster.Student, 0)
	for _, std := range repo.db.t.students {
		if filter.SchoolID != "" && std.SchoolID != filter.SchoolID {
			continue
		}
		if filter.SectionID != "" && std.SectionID != filter.SectionID {
			continue
		}
		students = append(students, std)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })
	return students, nil
}

// UpdateStudent also carries a new student id over to the student's parents.
func (repo *rosterRepository) UpdateStudent(ctx context.Context, std roster.Student) (roster.Student, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.students[std.ID]; !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	for _, other := range repo.db.t.students {
		if other.ID != std.ID && other.SchoolID == std.SchoolID && other.StudentID == std.StudentID {
			return roster.Student{}, roster.ErrStudentExists
		}
	}
	repo.db.t.students[std.ID] = std
	for pid, prt := range repo.db.t.parents {
		if prt.StudentID == std.ID {
			prt.StudentRef = std.StudentID
			repo.db.t.parents[pid] = prt
		}
	}
	return std, nil
}

func (repo *rosterRepository) DeleteStudents(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		deleteStudent(repo.db.t, id)
	}
	return nil
}

func (repo *rosterRepository) CreateAssignment(ctx context.Context, asg roster.Assignment) (roster.Assignment, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.assignments {
		if other.TeacherID == asg.TeacherID && other.SectionID == asg.SectionID && other.SubjectID == asg.SubjectID {
			return roster.Assignment{}, roster.ErrAssignmentExists
		}
	}
	asg.ID = newID()
	repo.db.t.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *rosterRepository) GetAssignment(ctx context.Context, id string) (roster.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asg, ok := repo.db.t.assignments[id]; ok {
		return asg, nil
	}
	return roster.Assignment{}, roster.ErrAssignmentNotFound
}

func (repo *rosterRepository) QueryAssignments(ctx context.Context, filter roster.AssignmentFilter) ([]roster.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]roster.Assignment, 0)
	for _, asg := range repo.db.t.assignments {
		if filter.TeacherID != "" && asg.TeacherID != filter.TeacherID {
			continue
		}
		if filter.SectionID != "" && asg.SectionID != filter.SectionID {
			continue
		}
		asgs = append(asgs, asg)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs, nil
}

func (repo *rosterRepository) UpdateAssignment(ctx context.Context, asg roster.Assignment) (roster.Assignment, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.assignments[asg.ID]; !ok {
		return roster.Assignment{}, roster.ErrAssignmentNotFound
	}
	for _, other := range repo.db.t.assignments {
		if other.ID != asg.ID && other.TeacherID == asg.TeacherID && other.SectionID == asg.SectionID && other.SubjectID == asg.SubjectID {
			return roster.Assignment{}, roster.ErrAssignmentExists
		}
	}
	repo.db.t.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *rosterRepository) DeleteAssignments(ctx context.Context, ids ...string) error {
	defer repo.db.lockWrite(ctx)()

	for _, id := range ids {
		delete(repo.db.t.assignments, id)
	}
	return nil
}
