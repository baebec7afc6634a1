package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/identity"
	testutil "github.com/trezcool/shule/tests"
)

func Test_identityApi_login(t *testing.T) {
	env.Reset()

	pwd := "Tr0ub4dor&3x"
	testutil.CreateIdentity(t, env.IdentityRepo, "oak_elementary_42", "oak@ex.org", pwd, identity.RoleSchool, "", true)
	testutil.CreateIdentity(t, env.IdentityRepo, "pine_high_7", "pine@ex.org", pwd, identity.RoleSchool, "", false)

	tests := []httpTest{
		{
			name: "missing credentials", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown username", body: marchallObj(t, LoginRequest{Username: "elm", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, LoginRequest{Username: "oak_elementary_42", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", body: marchallObj(t, LoginRequest{Username: "pine_high_7", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/identities/login"
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newAuthRequest(tt.method, tt.path, "", tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, uname := range []string{"oak_elementary_42", "OAK@ex.org "} {
		t.Run("success with "+uname, func(t *testing.T) {
			rec := serve(newRequest(http.MethodPost, "/v1/identities/login", marchallObj(t, LoginRequest{Username: uname, Password: pwd})))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshall(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			rec = serve(newAuthRequest(http.MethodGet, "/v1/identities/me", resp.Token))
			require.Equal(t, http.StatusOK, rec.Code)
			var me identity.Identity
			unmarshall(t, rec, &me)
			assert.Equal(t, "oak@ex.org", me.Email)
			assert.Equal(t, identity.RoleSchool, me.Role)
			assert.False(t, me.LastLogin.IsZero())
		})
	}
}

func Test_identityApi_tokenRefresh(t *testing.T) {
	env.Reset()
	idt := testutil.CreateIdentity(t, env.IdentityRepo, "oak_elementary_42", "oak@ex.org", "", identity.RoleSchool, "", true)

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/identities/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "success", method: http.MethodPost, path: "/v1/identities/token-refresh", token: getToken(t, idt), wantCode: http.StatusOK},
	}
	runHTTPTests(t, tests)

	// refresh window elapsed
	claims := NewClaims(env.Conf, idt, 0)
	token, err := GenerateToken(env.Conf, claims)
	require.NoError(t, err)
	rec := serve(newAuthRequest(http.MethodPost, "/v1/identities/token-refresh", token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})}, rec)
}

func Test_identityApi_changePassword(t *testing.T) {
	env.Reset()
	oldPwd := "Old-Pa55word!"
	idt := testutil.CreateIdentity(t, env.IdentityRepo, "oak_elementary_42", "oak@ex.org", oldPwd, identity.RoleSchool, "", true)
	token := getToken(t, idt)
	path := "/v1/identities/me/password"

	tests := []httpTest{
		{name: "auth required", method: http.MethodPut, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "wrong old password", method: http.MethodPut, path: path, token: token,
			body:     marchallObj(t, map[string]string{"old_password": "nope", "password": "Tr0ub4dor&3x", "password_confirm": "Tr0ub4dor&3x"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "mismatch", method: http.MethodPut, path: path, token: token,
			body:     marchallObj(t, map[string]string{"old_password": oldPwd, "password": "Tr0ub4dor&3x", "password_confirm": "other"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "success", method: http.MethodPut, path: path, token: token,
			body:     marchallObj(t, map[string]string{"old_password": oldPwd, "password": "Tr0ub4dor&3x", "password_confirm": "Tr0ub4dor&3x"}),
			wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Password has been changed."}),
		},
	}
	runHTTPTests(t, tests)

	_, err := env.Identities.Authenticate(contextBG(), "oak_elementary_42", "Tr0ub4dor&3x")
	assert.NoError(t, err)
}

func Test_identityApi_query(t *testing.T) {
	env.Reset()
	admin := createAdmin(t)
	oak := testutil.CreateIdentity(t, env.IdentityRepo, "oak_elementary_42", "oak@ex.org", "", identity.RoleSchool, "", true)
	teacher := testutil.CreateIdentity(t, env.IdentityRepo, "jane_doe_3", "jane@ex.org", "", identity.RoleTeacher, "", true)

	tests := []httpTest{
		{name: "auth required", path: "/v1/identities", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/identities", token: getToken(t, oak), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "all", path: "/v1/identities?ordering=username", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, admin, teacher, oak)},
		{name: "by role", path: "/v1/identities?role=teacher", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, teacher)},
		{name: "search", path: "/v1/identities?search=oak", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, oak)},
		{name: "descending", path: "/v1/identities?ordering=-username", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, oak, teacher, admin)},
		{
			name:     "unknown ordering field",
			path:     "/v1/identities?ordering=username,password",
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ordering": `cannot order by "password"; use one of username, email, created_at`}),
		},
		{
			name:     "repeated ordering field",
			path:     "/v1/identities?ordering=email,-email",
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ordering": `"email" is given twice`}),
		},
	}
	runHTTPTests(t, tests)
}
