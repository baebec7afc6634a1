package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

const identityColumns = "id, username, email, role, school_id, password_hash, is_active, created_at, updated_at, last_login"

type identityRow struct {
	ID           string      `db:"id"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	SchoolID     null.String `db:"school_id"`
	PasswordHash []byte      `db:"password_hash"`
	IsActive     bool        `db:"is_active"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toIdentityRow(idt identity.Identity) identityRow {
	return identityRow{
		ID:           idt.ID,
		Username:     idt.Username,
		Email:        idt.Email,
		Role:         string(idt.Role),
		SchoolID:     null.NewString(idt.SchoolID, idt.SchoolID != ""),
		PasswordHash: idt.PasswordHash,
		IsActive:     idt.IsActive,
		CreatedAt:    idt.CreatedAt.UTC(),
		UpdatedAt:    idt.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(idt.LastLogin.UTC(), !idt.LastLogin.IsZero()),
	}
}

func (r identityRow) toIdentity() identity.Identity {
	return identity.Identity{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		Role:         identity.Role(r.Role),
		SchoolID:     r.SchoolID.String,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type identityRepository struct {
	db *DB
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) *identityRepository {
	return &identityRepository{db: db}
}

// trapUniqueErr maps unique violations to the identity uniqueness errors.
func (repo *identityRepository) trapUniqueErr(err error, msg string) error {
	if code, constraint := pqErrCode(err); code == uniqueViolation {
		if strings.Contains(constraint, "username") {
			return identity.ErrUsernameExists
		}
		return identity.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, idt identity.Identity) (identity.Identity, error) {
	idt.ID = uuid.New().String()
	q := `INSERT INTO identities (` + identityColumns + `)
		VALUES (:id, :username, :email, :role, :school_id, :password_hash, :is_active, :created_at, :updated_at, :last_login)`
	if _, err := sqlxNamedExec(ctx, repo.db, q, toIdentityRow(idt)); err != nil {
		return identity.Identity{}, repo.trapUniqueErr(err, "inserting identity")
	}
	return idt, nil
}

func (repo *identityRepository) GetIdentity(ctx context.Context, filter identity.GetFilter) (identity.Identity, error) {
	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return identity.Identity{}, identity.ErrNotFound
		}
		cond, args = "id = $1", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "username = $1", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "email = $1", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		cond, args = "username = $1 OR email = $1", []interface{}{filter.UsernameOrEmail}
	default:
		return identity.Identity{}, identity.ErrNotFound
	}

	var row identityRow
	q := `SELECT ` + identityColumns + ` FROM identities WHERE ` + cond + ` LIMIT 1`
	if err := sqlxGet(ctx, repo.db, &row, q, args...); err != nil {
		return identity.Identity{}, trapNoRowsErr(err, identity.ErrNotFound, "finding identity")
	}
	return row.toIdentity(), nil
}

func (repo *identityRepository) QueryIdentities(ctx context.Context, filter *identity.QueryFilter, ordering []core.DBOrdering) ([]identity.Identity, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, "(username ILIKE "+p+" OR email ILIKE "+p+")")
		}
		if filter.Role != "" {
			conds = append(conds, "role = "+arg(string(filter.Role)))
		}
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []identity.Identity{}, nil
			}
			conds = append(conds, "school_id = "+arg(filter.SchoolID))
		}
	}

	q := `SELECT ` + identityColumns + ` FROM identities` + where(conds) + orderBy(core.CleanOrderings(ordering, identity.OrderingFields...), "created_at DESC")

	var rows []identityRow
	if err := sqlxSelect(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying identities")
	}
	idts := make([]identity.Identity, 0, len(rows))
	for _, r := range rows {
		idts = append(idts, r.toIdentity())
	}
	return idts, nil
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, idt identity.Identity) (identity.Identity, error) {
	if !validID(idt.ID) {
		return identity.Identity{}, identity.ErrNotFound
	}
	q := `UPDATE identities SET
		username = :username, email = :email, role = :role, school_id = :school_id, password_hash = :password_hash,
		is_active = :is_active, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlxNamedExec(ctx, repo.db, q, toIdentityRow(idt))
	if err != nil {
		return identity.Identity{}, repo.trapUniqueErr(err, "updating identity")
	}
	if err = checkAffected(res, identity.ErrNotFound); err != nil {
		return identity.Identity{}, err
	}
	return idt, nil
}

// DeleteIdentities relies on ON DELETE SET NULL to unlink schools, teachers and parents.
func (repo *identityRepository) DeleteIdentities(ctx context.Context, ids ...string) error {
	return repo.db.deleteByIDs(ctx, "identities", ids)
}
