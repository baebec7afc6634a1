package tests

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/school"
	testutil "github.com/trezcool/shule/tests"
)

func Test_schoolApi_submit(t *testing.T) {
	env.Reset()

	required := "this field is required"
	tests := []httpTest{
		{
			name: "empty", body: marchallObj(t, school.NewSchool{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": required, "address": required, "phone": required, "email": required}),
		},
		{
			name: "bad email & phone", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, school.NewSchool{Name: "Oak", Address: "1 Main St", Phone: "call me", Email: "oak"}),
			wantData: marchallObj(t, map[string]string{"phone": "enter a valid phone number", "email": "enter a valid email address"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newRequest(http.MethodPost, "/v1/schools", tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		body := marchallObj(t, school.NewSchool{Name: " Oak Elementary ", Address: "1 Main St", Phone: "+243 810 000 000", Email: "OAK@ex.org"})
		rec := serve(newRequest(http.MethodPost, "/v1/schools", body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var req school.RegistrationRequest
		unmarshall(t, rec, &req)
		assert.Equal(t, school.StatusPending, req.Status)
		require.NotNil(t, req.School)
		assert.Equal(t, "Oak Elementary", req.School.Name)
		assert.Equal(t, "oak@ex.org", req.School.Email)
		assert.Empty(t, env.Mailer.SentMessages())
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := marchallObj(t, school.NewSchool{Name: "Oak Two", Address: "2 Main St", Phone: "+243 810 000 001", Email: "oak@ex.org"})
		rec := serve(newRequest(http.MethodPost, "/v1/schools", body))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": school.ErrEmailExists.Error()}),
		}, rec)
	})
}

func Test_schoolApi_approve(t *testing.T) {
	env.Reset()
	admin := createAdmin(t)
	adminToken := getToken(t, admin)
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	_, oakReq := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")
	path := "/v1/requests/" + oakReq.ID + "/approve"

	tests := []httpTest{
		{name: "auth required", method: http.MethodPut, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", method: http.MethodPut, path: path, token: getToken(t, schoolIdentity(t, pine.Email)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown request", method: http.MethodPut, path: "/v1/requests/nope/approve", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "registration request not found"}),
		},
	}
	runHTTPTests(t, tests)

	t.Run("delivery failure keeps the request pending", func(t *testing.T) {
		env.Mailer.SetFailure(errors.New("smtp down"))
		defer env.Mailer.SetFailure(nil)

		rec := serve(newAuthRequest(http.MethodPut, path, adminToken))
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		req, err := env.Schools.GetRequest(contextBG(), oakReq.ID)
		require.NoError(t, err)
		assert.Equal(t, school.StatusPending, req.Status)
		_, err = env.Identities.GetByEmail(contextBG(), "oak@ex.org")
		assert.Error(t, err)
	})

	t.Run("success", func(t *testing.T) {
		env.Mailer.Reset()
		rec := serve(newAuthRequest(http.MethodPut, path, adminToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var req school.RegistrationRequest
		unmarshall(t, rec, &req)
		assert.Equal(t, school.StatusApproved, req.Status)
		require.NotNil(t, req.School)
		assert.NotEmpty(t, req.School.IdentityID)

		sent := env.Mailer.SentTo("oak@ex.org")
		require.Len(t, sent, 1)
		pwd := testutil.SentPassword(sent[0])
		assert.Len(t, pwd, env.Conf.Provisioning.PasswordLength)

		idt := schoolIdentity(t, "oak@ex.org")
		assert.NoError(t, idt.CheckPassword(pwd))
	})

	t.Run("already approved", func(t *testing.T) {
		env.Mailer.Reset()
		rec := serve(newAuthRequest(http.MethodPut, path, adminToken))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "registration request is already APPROVED"}),
		}, rec)
		assert.Empty(t, env.Mailer.SentMessages())
	})
}

func Test_schoolApi_cancel(t *testing.T) {
	env.Reset()
	adminToken := getToken(t, createAdmin(t))
	_, req := env.SubmitSchool(t, "Pine High", "pine@ex.org")
	path := "/v1/requests/" + req.ID + "/cancel"

	rec := serve(newAuthRequest(http.MethodPut, path, adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &req)
	assert.Equal(t, school.StatusCancelled, req.Status)

	sent := env.Mailer.SentTo("pine@ex.org")
	require.Len(t, sent, 1)
	assert.Equal(t, "Registration Cancelled", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Dear Pine High,")

	rec = serve(newAuthRequest(http.MethodPut, "/v1/requests/"+req.ID+"/approve", adminToken))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "registration request is already CANCELLED"}),
	}, rec)
}

func Test_schoolApi_queryRequests(t *testing.T) {
	env.Reset()
	adminToken := getToken(t, createAdmin(t))
	env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	_, oakReq := env.SubmitSchool(t, "Oak Elementary", "oak@ex.org")

	rec := serve(newAuthRequest(http.MethodGet, "/v1/requests?status=pending", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reqs []school.RegistrationRequest
	unmarshall(t, rec, &reqs)
	require.Len(t, reqs, 1)
	assert.Equal(t, oakReq.ID, reqs[0].ID)

	rec = serve(newAuthRequest(http.MethodGet, "/v1/requests", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshall(t, rec, &reqs)
	assert.Len(t, reqs, 2)

	rec = serve(newAuthRequest(http.MethodGet, "/v1/requests?status=lol", adminToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_schoolApi_retrieveAndDelete(t *testing.T) {
	env.Reset()
	adminToken := getToken(t, createAdmin(t))
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))

	tests := []httpTest{
		{name: "own school", path: "/v1/schools/" + oak.ID, token: oakToken, wantCode: http.StatusOK},
		{name: "other school", path: "/v1/schools/" + pine.ID, token: oakToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin", path: "/v1/schools/" + pine.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "list requires admin", path: "/v1/schools", token: oakToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "delete requires admin", method: http.MethodDelete, path: "/v1/schools/" + pine.ID, token: oakToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/v1/schools/" + pine.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/schools/" + pine.ID, token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"})},
	}
	runHTTPTests(t, tests)

	_, err := env.Identities.GetByEmail(contextBG(), pine.Email)
	assert.Error(t, err)
}

func Test_schoolApi_retrieveByEmail(t *testing.T) {
	env.Reset()
	adminToken := getToken(t, createAdmin(t))
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	pine := env.ApprovedSchool(t, "Pine High", "pine@ex.org")
	oakToken := getToken(t, schoolIdentity(t, oak.Email))

	tests := []httpTest{
		{name: "auth required", path: "/v1/schools/by-email/oak@ex.org", wantCode: http.StatusUnauthorized},
		{name: "own school", path: "/v1/schools/by-email/oak@ex.org", token: oakToken, wantCode: http.StatusOK, wantData: marchallObj(t, oak)},
		{name: "case insensitive", path: "/v1/schools/by-email/OAK@ex.org", token: oakToken, wantCode: http.StatusOK, wantData: marchallObj(t, oak)},
		{name: "escaped", path: "/v1/schools/by-email/oak%40ex.org", token: oakToken, wantCode: http.StatusOK, wantData: marchallObj(t, oak)},
		{name: "other school", path: "/v1/schools/by-email/pine@ex.org", token: oakToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin", path: "/v1/schools/by-email/pine@ex.org", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, pine)},
		{name: "unknown", path: "/v1/schools/by-email/nobody@ex.org", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"})},
	}
	runHTTPTests(t, tests)
}
