package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/importer"
	"github.com/trezcool/shule/core/roster"
)

func Test_rosterApi_teachers(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	env.Mailer.Reset()

	nt := roster.NewTeacher{SchoolID: oak.ID, FirstName: "Ada", LastName: "Lovelace", Phone: "+243 811 111 111", Email: "ada@ex.org"}

	t.Run("other school", func(t *testing.T) {
		other := nt
		other.SchoolID = pine.ID
		rec := serve(newAuthRequest(http.MethodPost, "/v1/teachers", oakToken, marchallObj(t, other)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	var tch roster.Teacher
	t.Run("created and provisioned", func(t *testing.T) {
		rec := serve(newAuthRequest(http.MethodPost, "/v1/teachers", oakToken, marchallObj(t, nt)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshall(t, rec, &tch)
		assert.NotEmpty(t, tch.IdentityID)

		sent := env.Mailer.SentTo("ada@ex.org")
		require.Len(t, sent, 1)
		require.NotNil(t, sent[0].From)
		assert.Equal(t, oak.Email, sent[0].From.Address)

		idt := schoolIdentity(t, "ada@ex.org")
		assert.Equal(t, identity.RoleTeacher, idt.Role)
		assert.Equal(t, oak.ID, idt.SchoolID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := serve(newAuthRequest(http.MethodPost, "/v1/teachers", oakToken, marchallObj(t, nt)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": roster.ErrTeacherExists.Error()}),
		}, rec)
	})

	teacherToken := getToken(t, schoolIdentity(t, "ada@ex.org"))
	pineToken := getToken(t, schoolIdentity(t, pine.Email))
	tests := []httpTest{
		{name: "teacher can view", path: "/v1/teachers", token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, tch)},
		{
			name: "teacher cannot create", method: http.MethodPost, path: "/v1/teachers", token: teacherToken,
			body: marchallObj(t, nt), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "other school cannot retrieve", path: "/v1/teachers/" + tch.ID, token: pineToken, wantCode: http.StatusForbidden},
		{name: "other school sees none", path: "/v1/teachers", token: pineToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "retrieve", path: "/v1/teachers/" + tch.ID, token: oakToken, wantCode: http.StatusOK, wantData: marchallObj(t, tch)},
		{name: "delete", method: http.MethodDelete, path: "/v1/teachers/" + tch.ID, token: oakToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/teachers/" + tch.ID, token: oakToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, tests)
}

func Test_rosterApi_studentsAndParents(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	sec := env.Section(t, oak.ID, "Grade 1", "A")
	env.Mailer.Reset()

	ns := roster.NewStudent{SchoolID: oak.ID, SectionID: sec.ID, StudentID: "S-001", FirstName: "Tom", LastName: "Doe", Age: 8, Gender: "M"}
	rec := serve(newAuthRequest(http.MethodPost, "/v1/students", oakToken, marchallObj(t, ns)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var std roster.Student
	unmarshall(t, rec, &std)
	assert.Equal(t, "S-001", std.StudentID)

	rec = serve(newAuthRequest(http.MethodPost, "/v1/students", oakToken, marchallObj(t, ns)))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"student_id": roster.ErrStudentExists.Error()}),
	}, rec)

	np := roster.NewParent{SchoolID: oak.ID, StudentRef: "S-404", FirstName: "Jane", LastName: "Doe", Phone: "+243 822 222 222", Email: "jane@ex.org"}
	rec = serve(newAuthRequest(http.MethodPost, "/v1/parents", oakToken, marchallObj(t, np)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.Mailer.SentMessages())

	np.StudentRef = "S-001"
	rec = serve(newAuthRequest(http.MethodPost, "/v1/parents", oakToken, marchallObj(t, np)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var prt roster.Parent
	unmarshall(t, rec, &prt)
	assert.Equal(t, std.ID, prt.StudentID)
	assert.Len(t, env.Mailer.SentTo("jane@ex.org"), 1)

	parentToken := getToken(t, schoolIdentity(t, "jane@ex.org"))
	tests := []httpTest{
		{name: "parents of student", path: "/v1/parents?student=" + std.ID, token: oakToken, wantCode: http.StatusOK, wantData: marchallList(t, prt)},
		{name: "students of section", path: "/v1/students?section_id=" + sec.ID, token: oakToken, wantCode: http.StatusOK, wantData: marchallList(t, std)},
		{name: "parent cannot view roster", path: "/v1/students", token: parentToken, wantCode: http.StatusForbidden},
		{name: "delete student", method: http.MethodDelete, path: "/v1/students/" + std.ID, token: oakToken, wantCode: http.StatusNoContent},
		{name: "parent removed with student", path: "/v1/parents/" + prt.ID, token: oakToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, tests)
}

func Test_rosterApi_assignments(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	sec := env.Section(t, oak.ID, "Grade 1", "A")

	tch, err := env.Roster.CreateTeacher(contextBG(), roster.NewTeacher{
		SchoolID: oak.ID, FirstName: "Ada", LastName: "Lovelace", Phone: "+243 811 111 111", Email: "ada@ex.org",
	})
	require.NoError(t, err)
	rec := serve(newAuthRequest(http.MethodPost, "/v1/subjects", oakToken, marchallObj(t, map[string]string{"school_id": oak.ID, "name": "Mathematics"})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub struct {
		ID string `json:"id"`
	}
	unmarshall(t, rec, &sub)

	na := roster.NewAssignment{TeacherID: tch.ID, SectionID: sec.ID, SubjectID: sub.ID}
	rec = serve(newAuthRequest(http.MethodPost, "/v1/assignments", oakToken, marchallObj(t, na)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asg roster.Assignment
	unmarshall(t, rec, &asg)

	rec = serve(newAuthRequest(http.MethodPost, "/v1/assignments", oakToken, marchallObj(t, na)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []httpTest{
		{name: "filter required", path: "/v1/assignments", token: oakToken, wantCode: http.StatusBadRequest},
		{name: "by teacher", path: "/v1/assignments?teacher_id=" + tch.ID, token: oakToken, wantCode: http.StatusOK, wantData: marchallList(t, asg)},
		{name: "by section", path: "/v1/assignments?section_id=" + sec.ID, token: oakToken, wantCode: http.StatusOK, wantData: marchallList(t, asg)},
	}
	runHTTPTests(t, tests)
}

func Test_rosterApi_upload(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	sec := env.Section(t, oak.ID, "Grade 1", "A")
	env.Mailer.Reset()

	students := strings.Join([]string{
		"Student ID,First Name,Last Name,Age,Gender",
		"S-001,Tom,Doe,8,M",
		"S-002,Ann,Roe,9.0,F",
		"S-001,Tim,Dup,8,M",
		"S-003,,Nameless,seven,F",
	}, "\n")

	t.Run("students", func(t *testing.T) {
		rec := serve(newUploadRequest(t, "/v1/students/upload", oakToken, "students.csv", []byte(students), map[string]string{
			"section_id": sec.ID,
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var summary importer.Summary
		unmarshall(t, rec, &summary)
		assert.Equal(t, 2, summary.Created)
		assert.Equal(t, 2, summary.Skipped)
		require.Len(t, summary.Failures, 2)
		assert.Equal(t, 3, summary.Failures[0].Row)
		assert.Equal(t, "student_id: "+roster.ErrStudentExists.Error(), summary.Failures[0].Reason)
		assert.Equal(t, 4, summary.Failures[1].Row)

		stds, err := env.Roster.QueryStudents(contextBG(), roster.StudentFilter{SchoolID: oak.ID})
		require.NoError(t, err)
		assert.Len(t, stds, 2)
	})

	t.Run("teachers", func(t *testing.T) {
		teachers := "first_name,last_name,phone,email\nAda,Lovelace,+243 811 111 111,ada@ex.org\nAlan,Turing,nope,alan@ex.org\n"
		rec := serve(newUploadRequest(t, "/v1/teachers/upload", oakToken, "teachers.csv", []byte(teachers), nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var summary importer.Summary
		unmarshall(t, rec, &summary)
		assert.Equal(t, 1, summary.Created)
		assert.Equal(t, 1, summary.Skipped)
		assert.Len(t, env.Mailer.SentTo("ada@ex.org"), 1)
		assert.Empty(t, env.Mailer.SentTo("alan@ex.org"))
	})

	t.Run("aborted", func(t *testing.T) {
		teachers := "first_name,last_name,phone,email\nBob,Doe,+243 811 111 112,bob@ex.org\n"
		req, rec := newUploadRequest(t, "/v1/teachers/upload", oakToken, "teachers.csv", []byte(teachers), nil)
		cctx, cancel := context.WithCancel(req.Context())
		cancel()
		rec = serve(req.WithContext(cctx), rec)
		require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

		var body struct {
			importer.Summary
			AbortedAt int    `json:"aborted_at"`
			Error     string `json:"error"`
		}
		unmarshall(t, rec, &body)
		assert.Equal(t, 1, body.AbortedAt)
		assert.Zero(t, body.Created+body.Skipped)
		assert.NotNil(t, body.Failures)
		assert.NotEmpty(t, body.Error)
		assert.Empty(t, env.Mailer.SentTo("bob@ex.org"))
	})

	tests := []struct {
		name     string
		path     string
		filename string
		content  string
		fields   map[string]string
		wantCode int
	}{
		{name: "missing file", path: "/v1/teachers/upload", wantCode: http.StatusBadRequest},
		{name: "other school", path: "/v1/teachers/upload", filename: "t.csv", content: "email\n", fields: map[string]string{"school_id": pine.ID}, wantCode: http.StatusForbidden},
		{name: "unsupported format", path: "/v1/teachers/upload", filename: "t.pdf", content: "%PDF", wantCode: http.StatusBadRequest},
		{name: "section required", path: "/v1/students/upload", filename: "s.csv", content: students, wantCode: http.StatusBadRequest},
		{name: "unknown section", path: "/v1/students/upload", filename: "s.csv", content: students, fields: map[string]string{"section_id": "nope"}, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var content []byte
			if tt.filename != "" {
				content = []byte(tt.content)
			}
			rec := serve(newUploadRequest(t, tt.path, oakToken, tt.filename, content, tt.fields))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func Test_rosterApi_updates(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	pineToken := getToken(t, schoolIdentity(t, pine.Email))
	secA := env.Section(t, oak.ID, "Grade 1", "A")
	secB := env.Section(t, oak.ID, "Grade 2", "B")

	tch, err := env.Roster.CreateTeacher(contextBG(), roster.NewTeacher{
		SchoolID: oak.ID, FirstName: "Ada", LastName: "Lovelace", Phone: "+243 811 111 111", Email: "ada@ex.org",
	})
	require.NoError(t, err)
	std, err := env.Roster.CreateStudent(contextBG(), roster.NewStudent{
		SchoolID: oak.ID, SectionID: secA.ID, StudentID: "S-001", FirstName: "Kid", LastName: "Doe", Age: 8, Gender: "M",
	})
	require.NoError(t, err)
	prt, err := env.Roster.CreateParent(contextBG(), roster.NewParent{
		SchoolID: oak.ID, StudentRef: "S-001", FirstName: "Pat", LastName: "Doe", Phone: "+243 811 111 112", Email: "pat@ex.org",
	})
	require.NoError(t, err)
	teacherToken := getToken(t, schoolIdentity(t, "ada@ex.org"))

	renamed := tch
	renamed.LastName = "King"
	moved := std
	moved.SectionID, moved.Age = secB.ID, 9

	tests := []httpTest{
		{
			name: "teacher", method: http.MethodPatch, path: "/v1/teachers/" + tch.ID, token: oakToken,
			body: []byte(`{"last_name": "King"}`), wantCode: http.StatusOK, wantData: marchallObj(t, renamed),
		},
		{
			name: "teacher email is read only", method: http.MethodPut, path: "/v1/teachers/" + tch.ID, token: oakToken,
			body:     []byte(`{"email": "new@ex.org"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "the email of an account cannot be changed"}),
		},
		{
			name: "invalid phone", method: http.MethodPut, path: "/v1/teachers/" + tch.ID, token: oakToken,
			body: []byte(`{"phone": "call me"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "teacher cannot update", method: http.MethodPatch, path: "/v1/teachers/" + tch.ID, token: teacherToken,
			body: []byte(`{"last_name": "Byron"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "other school", method: http.MethodPatch, path: "/v1/teachers/" + tch.ID, token: pineToken,
			body: []byte(`{"last_name": "Byron"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "student", method: http.MethodPatch, path: "/v1/students/" + std.ID, token: oakToken,
			body:     marchallObj(t, roster.UpdateStudent{SectionID: secB.ID, Age: 9}),
			wantCode: http.StatusOK, wantData: marchallObj(t, moved),
		},
		{
			name: "student age out of range", method: http.MethodPatch, path: "/v1/students/" + std.ID, token: oakToken,
			body: []byte(`{"age": 200}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "parent", method: http.MethodPut, path: "/v1/parents/" + prt.ID, token: oakToken,
			body: []byte(`{"first_name": "Patricia"}`), wantCode: http.StatusOK,
		},
		{name: "unknown parent", method: http.MethodPut, path: "/v1/parents/nope", token: oakToken, body: []byte(`{}`), wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, tests)

	stored, err := env.Roster.GetParent(contextBG(), prt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Patricia", stored.FirstName)
	assert.Equal(t, "Doe", stored.LastName)
}

func Test_rosterApi_assignmentByID(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	pineToken := getToken(t, schoolIdentity(t, pine.Email))
	sec := env.Section(t, oak.ID, "Grade 1", "A")

	newTeacher := func(first, email, schoolID string) roster.Teacher {
		tch, err := env.Roster.CreateTeacher(contextBG(), roster.NewTeacher{
			SchoolID: schoolID, FirstName: first, LastName: "Doe", Phone: "+243 811 111 111", Email: email,
		})
		require.NoError(t, err)
		return tch
	}
	ada := newTeacher("Ada", "ada@ex.org", oak.ID)
	bob := newTeacher("Bob", "bob@ex.org", oak.ID)
	zed := newTeacher("Zed", "zed@ex.org", pine.ID)
	math, err := env.Academics.CreateSubject(contextBG(), academic.NewSubject{SchoolID: oak.ID, Name: "Maths"})
	require.NoError(t, err)
	asg, err := env.Roster.Assign(contextBG(), roster.NewAssignment{TeacherID: ada.ID, SectionID: sec.ID, SubjectID: math.ID})
	require.NoError(t, err)

	reassigned := asg
	reassigned.TeacherID = bob.ID
	path := "/v1/assignments/" + asg.ID

	tests := []httpTest{
		{name: "retrieve", path: path, token: oakToken, wantCode: http.StatusOK, wantData: marchallObj(t, asg)},
		{name: "other school", path: path, token: pineToken, wantCode: http.StatusForbidden},
		{name: "unknown", path: "/v1/assignments/nope", token: oakToken, wantCode: http.StatusNotFound},
		{
			name: "teacher of other school", method: http.MethodPatch, path: path, token: oakToken,
			body: marchallObj(t, roster.UpdateAssignment{TeacherID: zed.ID}), wantCode: http.StatusForbidden,
		},
		{
			name: "reassign", method: http.MethodPatch, path: path, token: oakToken,
			body: marchallObj(t, roster.UpdateAssignment{TeacherID: bob.ID}), wantCode: http.StatusOK, wantData: marchallObj(t, reassigned),
		},
		{name: "other school cannot delete", method: http.MethodDelete, path: path, token: pineToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: path, token: oakToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: path, token: oakToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assignment not found"})},
	}
	runHTTPTests(t, tests)
}

func Test_rosterApi_studentTeachersSubjects(t *testing.T) {
	env.Reset()
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))
	pineToken := getToken(t, schoolIdentity(t, pine.Email))
	sec := env.Section(t, oak.ID, "Grade 1", "A")

	tch, err := env.Roster.CreateTeacher(contextBG(), roster.NewTeacher{
		SchoolID: oak.ID, FirstName: "Ada", LastName: "Lovelace", Phone: "+243 811 111 111", Email: "ada@ex.org",
	})
	require.NoError(t, err)
	math, err := env.Academics.CreateSubject(contextBG(), academic.NewSubject{SchoolID: oak.ID, Name: "Maths"})
	require.NoError(t, err)
	asg, err := env.Roster.Assign(contextBG(), roster.NewAssignment{TeacherID: tch.ID, SectionID: sec.ID, SubjectID: math.ID})
	require.NoError(t, err)
	for _, ns := range []roster.NewStudent{
		{SchoolID: oak.ID, SectionID: sec.ID, StudentID: "S-001", FirstName: "Kid", LastName: "Doe", Age: 8, Gender: "M"},
		{SchoolID: oak.ID, SectionID: sec.ID, StudentID: "S-002", FirstName: "Other", LastName: "Kid", Age: 8, Gender: "F"},
	} {
		_, err = env.Roster.CreateStudent(contextBG(), ns)
		require.NoError(t, err)
	}
	students, err := env.Roster.QueryStudents(contextBG(), roster.StudentFilter{SchoolID: oak.ID})
	require.NoError(t, err)
	kid, other := students[0], students[1]
	_, err = env.Roster.CreateParent(contextBG(), roster.NewParent{
		SchoolID: oak.ID, StudentRef: "S-001", FirstName: "Pat", LastName: "Doe", Phone: "+243 811 111 112", Email: "pat@ex.org",
	})
	require.NoError(t, err)
	parentToken := getToken(t, schoolIdentity(t, "pat@ex.org"))

	want := marchallList(t, roster.TeacherSubject{
		AssignmentID: asg.ID, TeacherID: tch.ID, Teacher: "Ada Lovelace", SubjectID: math.ID, Subject: "Maths",
	})
	path := "/v1/students/" + kid.ID + "/teachers-subjects"

	tests := []httpTest{
		{name: "school", path: path, token: oakToken, wantCode: http.StatusOK, wantData: want},
		{name: "teacher", path: path, token: getToken(t, schoolIdentity(t, "ada@ex.org")), wantCode: http.StatusOK, wantData: want},
		{name: "parent of the student", path: path, token: parentToken, wantCode: http.StatusOK, wantData: want},
		{name: "parent of another student", path: "/v1/students/" + other.ID + "/teachers-subjects", token: parentToken, wantCode: http.StatusForbidden},
		{name: "other school", path: path, token: pineToken, wantCode: http.StatusForbidden},
		{name: "unknown student", path: "/v1/students/nope/teachers-subjects", token: oakToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, tests)
}
