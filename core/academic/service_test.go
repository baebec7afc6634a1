package academic_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	testutil "github.com/trezcool/shule/tests"
)

func TestGrades(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")
	pine, _ := env.SubmitSchool(t, "Pine High", "pine@ex.org")

	g1, err := env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 1"})
	require.NoError(t, err)
	_, err = env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 2"})
	require.NoError(t, err)
	_, err = env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: pine.ID, Name: "Grade 1"})
	require.NoError(t, err, "names are unique per school")

	_, err = env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 1"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, "name", err.(*core.ValidationError).Fields[0].Field)

	_, err = env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: "missing", Name: "Grade 1"})
	assert.True(t, core.IsNotFound(err))

	grades, err := env.Academics.QueryGrades(ctx, oak.ID)
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, "Grade 1", grades[0].Name)

	require.NoError(t, env.Academics.DeleteGrades(ctx, g1.ID))
	_, err = env.Academics.GetGrade(ctx, g1.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestSections(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")

	grd, err := env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 1"})
	require.NoError(t, err)

	sec, err := env.Academics.CreateSection(ctx, academic.NewSection{GradeID: grd.ID, Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, oak.ID, sec.SchoolID)

	_, err = env.Academics.CreateSection(ctx, academic.NewSection{GradeID: grd.ID, Name: "A"})
	assert.True(t, core.IsValidation(err))
	_, err = env.Academics.CreateSection(ctx, academic.NewSection{GradeID: "missing", Name: "A"})
	assert.True(t, core.IsNotFound(err))

	sections, err := env.Academics.QuerySections(ctx, grd.ID)
	require.NoError(t, err)
	assert.Len(t, sections, 1)

	// sections go with their grade
	require.NoError(t, env.Academics.DeleteGrades(ctx, grd.ID))
	_, err = env.Academics.GetSection(ctx, sec.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestSubjects(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")

	math, err := env.Academics.CreateSubject(ctx, academic.NewSubject{SchoolID: oak.ID, Name: "Maths"})
	require.NoError(t, err)
	_, err = env.Academics.CreateSubject(ctx, academic.NewSubject{SchoolID: oak.ID, Name: "Maths"})
	assert.True(t, core.IsValidation(err))

	subjects, err := env.Academics.QuerySubjects(ctx, oak.ID)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, math.ID, subjects[0].ID)

	require.NoError(t, env.Academics.DeleteSubjects(ctx, math.ID))
	_, err = env.Academics.GetSubject(ctx, math.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestUpdateGrade(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")

	g1, err := env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 1"})
	require.NoError(t, err)
	_, err = env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 2"})
	require.NoError(t, err)

	grd, err := env.Academics.UpdateGrade(ctx, g1.ID, academic.UpdateGrade{Name: "First grade"})
	require.NoError(t, err)
	assert.Equal(t, "First grade", grd.Name)
	assert.Equal(t, oak.ID, grd.SchoolID)

	grd, err = env.Academics.UpdateGrade(ctx, g1.ID, academic.UpdateGrade{})
	require.NoError(t, err)
	assert.Equal(t, "First grade", grd.Name, "a blank name keeps the current one")

	_, err = env.Academics.UpdateGrade(ctx, g1.ID, academic.UpdateGrade{Name: "Grade 2"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, "name", err.(*core.ValidationError).Fields[0].Field)

	_, err = env.Academics.UpdateGrade(ctx, "missing", academic.UpdateGrade{Name: "x"})
	assert.True(t, core.IsNotFound(err))

	stored, err := env.Academics.GetGrade(ctx, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, "First grade", stored.Name)
}

func TestUpdateSection(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")
	pine, _ := env.SubmitSchool(t, "Pine High", "pine@ex.org")

	secA := env.Section(t, oak.ID, "Grade 1", "A")
	g2, err := env.Academics.CreateGrade(ctx, academic.NewGrade{SchoolID: oak.ID, Name: "Grade 2"})
	require.NoError(t, err)
	_, err = env.Academics.CreateSection(ctx, academic.NewSection{GradeID: g2.ID, Name: "B"})
	require.NoError(t, err)
	pineSec := env.Section(t, pine.ID, "Grade 1", "A")

	t.Run("rename", func(t *testing.T) {
		sec, err := env.Academics.UpdateSection(ctx, secA.ID, academic.UpdateSection{Name: "Alpha"})
		require.NoError(t, err)
		assert.Equal(t, "Alpha", sec.Name)
		assert.Equal(t, secA.GradeID, sec.GradeID)
	})

	t.Run("move to another grade", func(t *testing.T) {
		sec, err := env.Academics.UpdateSection(ctx, secA.ID, academic.UpdateSection{GradeID: g2.ID})
		require.NoError(t, err)
		assert.Equal(t, g2.ID, sec.GradeID)
		assert.Equal(t, "Alpha", sec.Name)
		assert.Equal(t, oak.ID, sec.SchoolID)
	})

	t.Run("name taken in the grade", func(t *testing.T) {
		_, err := env.Academics.UpdateSection(ctx, secA.ID, academic.UpdateSection{Name: "B"})
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("grade of another school", func(t *testing.T) {
		_, err := env.Academics.UpdateSection(ctx, secA.ID, academic.UpdateSection{GradeID: pineSec.GradeID})
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
		assert.Equal(t, "grade_id", err.(*core.ValidationError).Fields[0].Field)
	})

	t.Run("missing grade", func(t *testing.T) {
		_, err := env.Academics.UpdateSection(ctx, secA.ID, academic.UpdateSection{GradeID: "missing"})
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	stored, err := env.Academics.GetSection(ctx, secA.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", stored.Name)
	assert.Equal(t, g2.ID, stored.GradeID)
}

func TestUpdateSubject(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	oak, _ := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")

	math, err := env.Academics.CreateSubject(ctx, academic.NewSubject{SchoolID: oak.ID, Name: "Maths"})
	require.NoError(t, err)
	_, err = env.Academics.CreateSubject(ctx, academic.NewSubject{SchoolID: oak.ID, Name: "History"})
	require.NoError(t, err)

	sub, err := env.Academics.UpdateSubject(ctx, math.ID, academic.UpdateSubject{Name: "Mathematics"})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", sub.Name)

	_, err = env.Academics.UpdateSubject(ctx, math.ID, academic.UpdateSubject{Name: "History"})
	assert.True(t, core.IsValidation(err))

	_, err = env.Academics.UpdateSubject(ctx, "missing", academic.UpdateSubject{Name: "x"})
	assert.True(t, core.IsNotFound(err))
}

func TestInputsValidate(t *testing.T) {
	env := testutil.NewEnv()

	ng := academic.NewGrade{SchoolID: " s1 ", Name: "  Grade 1 "}
	require.NoError(t, ng.Validate(env.Validate))
	assert.Equal(t, "Grade 1", ng.Name)
	assert.Equal(t, "s1", ng.SchoolID)

	assert.Error(t, (&academic.NewGrade{SchoolID: "s1"}).Validate(env.Validate))
	assert.Error(t, (&academic.NewSection{Name: "A"}).Validate(env.Validate))
	assert.Error(t, (&academic.NewSubject{SchoolID: "s1"}).Validate(env.Validate))

	ug := academic.UpdateGrade{Name: "  "}
	require.NoError(t, ug.Validate(env.Validate), "a blank name is allowed")
	assert.Equal(t, "", ug.Name)
	assert.Error(t, (&academic.UpdateSubject{Name: strings.Repeat("x", 101)}).Validate(env.Validate))
}
