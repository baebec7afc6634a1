package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Grade struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Section struct {
	ID        string    `json:"id"`
	GradeID   string    `json:"grade_id"`
	SchoolID  string    `json:"school_id"` // read only; the grade's school
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Subject struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewGrade struct {
	SchoolID string `json:"school_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.SchoolID = core.CleanString(ng.SchoolID)
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

type NewSection struct {
	GradeID string `json:"grade_id" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.GradeID = core.CleanString(ns.GradeID)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type NewSubject struct {
	SchoolID string `json:"school_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.SchoolID = core.CleanString(ns.SchoolID)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// UpdateGrade renames a grade; a blank name keeps the current one.
type UpdateGrade struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	ug.Name = core.CleanString(ug.Name)
	return validate.Struct(ug)
}

// UpdateSection renames a section or moves it to another grade of the same school.
// Blank fields keep their current value.
type UpdateSection struct {
	GradeID string `json:"grade_id"`
	Name    string `json:"name" validate:"omitempty,max=100"`
}

func (us *UpdateSection) Validate(validate *validator.Validate) error {
	us.GradeID = core.CleanString(us.GradeID)
	us.Name = core.CleanString(us.Name)
	return validate.Struct(us)
}

// UpdateSubject renames a subject; a blank name keeps the current one.
type UpdateSubject struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	return validate.Struct(us)
}
