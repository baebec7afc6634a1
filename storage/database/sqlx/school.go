package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

const (
	schoolColumns  = "id, name, address, phone, email, identity_id, created_at, updated_at"
	requestColumns = `r.id, r.school_id, r.status, r.created_at, r.updated_at,
		s.id "school.id", s.name "school.name", s.address "school.address", s.phone "school.phone",
		s.email "school.email", s.identity_id "school.identity_id",
		s.created_at "school.created_at", s.updated_at "school.updated_at"`
)

type schoolRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	Address    string      `db:"address"`
	Phone      string      `db:"phone"`
	Email      string      `db:"email"`
	IdentityID null.String `db:"identity_id"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func toSchoolRow(sch school.School) schoolRow {
	return schoolRow{
		ID:         sch.ID,
		Name:       sch.Name,
		Address:    sch.Address,
		Phone:      sch.Phone,
		Email:      sch.Email,
		IdentityID: null.NewString(sch.IdentityID, sch.IdentityID != ""),
		CreatedAt:  sch.CreatedAt.UTC(),
		UpdatedAt:  sch.UpdatedAt.UTC(),
	}
}

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:         r.ID,
		Name:       r.Name,
		Address:    r.Address,
		Phone:      r.Phone,
		Email:      r.Email,
		IdentityID: r.IdentityID.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type requestRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	School    schoolRow `db:"school"`
}

func (r requestRow) toRequest() school.RegistrationRequest {
	sch := r.School.toSchool()
	return school.RegistrationRequest{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Status:    school.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		School:    &sch,
	}
}

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	q := `INSERT INTO schools (` + schoolColumns + `)
		VALUES (:id, :name, :address, :phone, :email, :identity_id, :created_at, :updated_at)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, toSchoolRow(sch)); err != nil {
		if isUniqueViolation(err) {
			return school.School{}, school.ErrEmailExists
		}
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	q := `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1`
	if err := repo.db.getByID(ctx, &row, q, id, school.ErrNotFound, "finding school"); err != nil {
		return school.School{}, err
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) GetSchoolByEmail(ctx context.Context, email string) (school.School, error) {
	var row schoolRow
	q := `SELECT ` + schoolColumns + ` FROM schools WHERE email = $1`
	if err := sqlxGet(ctx, repo.db, &row, q, email); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school by email")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil && filter.Search != "" {
		conds = append(conds, "(name ILIKE $1 OR email ILIKE $1)")
		args = append(args, "%"+filter.Search+"%")
	}
	q := `SELECT ` + schoolColumns + ` FROM schools` + where(conds) +
		orderBy(core.CleanOrderings(ordering, school.OrderingFields...), "created_at DESC")

	var rows []schoolRow
	if err := sqlxSelect(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, r.toSchool())
	}
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if !validID(sch.ID) {
		return school.School{}, school.ErrNotFound
	}
	q := `UPDATE schools SET
		name = :name, address = :address, phone = :phone, email = :email, identity_id = :identity_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, toSchoolRow(sch))
	if err != nil {
		if isUniqueViolation(err) {
			return school.School{}, school.ErrEmailExists
		}
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if err = checkAffected(res, school.ErrNotFound); err != nil {
		return school.School{}, err
	}
	return sch, nil
}

// DeleteSchool relies on the ON DELETE CASCADE foreign keys for everything the school owns.
func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	return repo.db.deleteByIDs(ctx, "schools", []string{id})
}

func (repo *schoolRepository) CreateRequest(ctx context.Context, req school.RegistrationRequest) (school.RegistrationRequest, error) {
	if !validID(req.SchoolID) {
		return school.RegistrationRequest{}, school.ErrNotFound
	}
	req.ID = uuid.New().String()
	req.School = nil
	q := `INSERT INTO registration_requests (id, school_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := repo.db.getExec(ctx).ExecContext(ctx, q, req.ID, req.SchoolID, string(req.Status), req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return school.RegistrationRequest{}, school.ErrNotFound
		}
		return school.RegistrationRequest{}, errors.Wrap(err, "inserting registration request")
	}
	return req, nil
}

func (repo *schoolRepository) GetRequest(ctx context.Context, id string, forUpdate bool) (school.RegistrationRequest, error) {
	var row requestRow
	q := `SELECT ` + requestColumns + ` FROM registration_requests r JOIN schools s ON s.id = r.school_id WHERE r.id = $1`
	if forUpdate {
		q += ` FOR UPDATE OF r`
	}
	if err := repo.db.getByID(ctx, &row, q, id, school.ErrRequestNotFound, "finding registration request"); err != nil {
		return school.RegistrationRequest{}, err
	}
	return row.toRequest(), nil
}

func (repo *schoolRepository) QueryRequests(ctx context.Context, status school.Status) ([]school.RegistrationRequest, error) {
	var (
		conds []string
		args  []interface{}
	)
	if status != "" {
		conds = append(conds, "r.status = $1")
		args = append(args, string(status))
	}
	q := `SELECT ` + requestColumns + ` FROM registration_requests r JOIN schools s ON s.id = r.school_id` +
		where(conds) + ` ORDER BY r.created_at DESC`

	var rows []requestRow
	if err := sqlxSelect(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying registration requests")
	}
	reqs := make([]school.RegistrationRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

func (repo *schoolRepository) UpdateRequest(ctx context.Context, req school.RegistrationRequest) (school.RegistrationRequest, error) {
	if !validID(req.ID) {
		return school.RegistrationRequest{}, school.ErrRequestNotFound
	}
	q := `UPDATE registration_requests SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := repo.db.getExec(ctx).ExecContext(ctx, q, string(req.Status), req.UpdatedAt.UTC(), req.ID)
	if err != nil {
		return school.RegistrationRequest{}, errors.Wrap(err, "updating registration request")
	}
	if err = checkAffected(res, school.ErrRequestNotFound); err != nil {
		return school.RegistrationRequest{}, err
	}
	req.School = nil
	return req, nil
}

func (repo *schoolRepository) DeleteRequests(ctx context.Context, schoolID string) error {
	if !validID(schoolID) {
		return nil
	}
	_, err := repo.db.getExec(ctx).ExecContext(ctx, `DELETE FROM registration_requests WHERE school_id = $1`, schoolID)
	return errors.Wrap(err, "deleting registration requests")
}
