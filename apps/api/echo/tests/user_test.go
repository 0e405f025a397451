package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/Mabu007/czane-beauty-academy/apps/api/echo"
	"github.com/Mabu007/czane-beauty-academy/core/auth"
	"github.com/Mabu007/czane-beauty-academy/core/user"
	emailsvc "github.com/Mabu007/czane-beauty-academy/services/email"
)

const strongPwd = "Lash&Brow2024"

func Test_userApi_signUp(t *testing.T) {
	app := setup(t)
	createUser(t, "Taken", "taken@test.za", strongPwd, user.RoleStudent)

	tests := []httpTest{
		{
			name: "password mismatch", method: http.MethodPost, path: "/v1/auth/signup",
			body: marshalObj(t, user.NewUser{
				DisplayName: "Naledi", Email: "naledi@test.za", Password: strongPwd, PasswordConfirm: "nope",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/signup",
			body: marshalObj(t, user.NewUser{
				DisplayName: "Taken", Email: "TAKEN@test.za", Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
	}
	runTests(t, app, tests)

	t.Run("student created", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/auth/signup", "", marshalObj(t, user.NewUser{
			DisplayName: "Naledi", Email: "Naledi@Test.za", Password: strongPwd, PasswordConfirm: strongPwd,
			Role: user.RoleAdmin, // ignored
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp echoapi.SessionResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, "naledi@test.za", resp.User.Email)
		assert.Equal(t, user.RoleStudent, resp.User.Role)
		assert.False(t, resp.User.IsManual)

		outbox := emailsvc.Outbox()
		require.Len(t, outbox, 1)
		assert.Equal(t, "naledi@test.za", outbox[0].To[0].Address)
	})
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	createUser(t, "Zodwa", "zodwa@test.za", strongPwd, user.RoleStudent)
	inactive := createUser(t, "Gone", "gone@test.za", strongPwd, user.RoleStudent)
	inactive.IsActive = false
	_, err := usrRepo.UpdateUser(context.Background(), inactive)
	require.NoError(t, err)

	authFailed := marshalObj(t, httpErr{Error: user.ErrAuthenticationFailed.Error()})
	tests := []httpTest{
		{name: "no data", method: http.MethodPost, path: "/v1/auth/login", body: []byte("{}"), wantCode: http.StatusBadRequest},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "lol@test.za", Password: strongPwd}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "zodwa@test.za", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, echoapi.LoginRequest{Email: "gone@test.za", Password: strongPwd}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runTests(t, app, tests)

	t.Run("success", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/auth/login", "", marshalObj(t, echoapi.LoginRequest{Email: " ZODWA@test.za", Password: strongPwd}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.SessionResponse
		unmarshal(t, rec, &resp)
		claims, err := user.ParseToken(resp.Token, conf.SecretKey)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, claims.Subject)
		assert.False(t, resp.User.LastLogin.IsZero())
	})
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	usr := createUser(t, "", "anon@test.za", "", user.RoleStudent)
	token := getToken(t, usr)

	rec := do(app, http.MethodGet, "/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(app, http.MethodPut, "/v1/users/me", token, marshalObj(t, user.UpdateProfile{DisplayName: " Lerato "}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(app, http.MethodGet, "/v1/users/me", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	unmarshal(t, rec, &got)
	assert.Equal(t, "Lerato", got.DisplayName)

	// the token of a deleted user is no longer valid
	require.NoError(t, usrRepo.DeleteUser(context.Background(), usr.ID))
	rec = do(app, http.MethodGet, "/v1/users/me", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	createUser(t, "Zodwa", "zodwa@test.za", strongPwd, user.RoleStudent)

	for _, email := range []string{"zodwa@test.za", "unknown@test.za"} {
		rec := do(app, http.MethodPost, "/v1/auth/password-reset", "", marshalObj(t, echoapi.PasswordResetRequest{Email: email}))
		assert.Equal(t, http.StatusOK, rec.Code, email)
	}
	// only the real account receives an email
	outbox := emailsvc.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, "zodwa@test.za", outbox[0].To[0].Address)

	rec := do(app, http.MethodPost, "/v1/auth/password-reset/confirm", "", marshalObj(t, user.ResetUserPassword{
		Token: "bad", UID: "bad", Password: strongPwd, PasswordConfirm: strongPwd,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_authGate(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Boss", "boss@test.za", "", user.RoleAdmin)
	student := createUser(t, "Kid", "kid@test.za", "", user.RoleStudent)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	notAdmin := marshalObj(t, gateErr{Error: "permission denied", Redirect: auth.StudentDashboardPath})
	tests := []httpTest{
		{name: "no session", path: "/v1/admin/courses", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/admin/courses", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "student", path: "/v1/admin/courses", token: studentToken, wantCode: http.StatusForbidden, wantData: notAdmin},
		{name: "admin", path: "/v1/admin/courses", token: adminToken, wantCode: http.StatusOK, wantData: []byte("[]")},
		{
			name: "decision: no session", path: "/v1/auth/route/admin", wantCode: http.StatusOK,
			wantData: marshalObj(t, auth.Decision{State: auth.StateDenied, Redirect: auth.SignInPath}),
		},
		{
			name: "decision: student", path: "/v1/auth/route/admin", token: studentToken, wantCode: http.StatusOK,
			wantData: marshalObj(t, auth.Decision{State: auth.StateGrantedUser, Redirect: auth.StudentDashboardPath}),
		},
		{
			name: "decision: admin", path: "/v1/auth/route/admin", token: adminToken, wantCode: http.StatusOK,
			wantData: marshalObj(t, auth.Decision{State: auth.StateGrantedAdmin, Allow: true}),
		},
	}
	runTests(t, app, tests)

	// demoted after the token was issued: the token still says admin
	admin.Role = user.RoleStudent
	_, err := usrRepo.UpdateUser(context.Background(), admin)
	require.NoError(t, err)

	t.Run("stale admin claim is refreshed", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/admin/courses", adminToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: notAdmin}, rec)

		rec = do(app, http.MethodGet, "/v1/auth/route/admin", adminToken)
		var d auth.Decision
		unmarshal(t, rec, &d)
		assert.Equal(t, auth.StateGrantedUser, d.State)
		assert.False(t, d.Allow)
	})

	t.Run("portal link trusts the token", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/auth/portal", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp echoapi.PortalResponse
		unmarshal(t, rec, &resp)
		assert.True(t, resp.IsAdmin)
		assert.Equal(t, auth.AdminDashboardPath, resp.Dashboard)
	})

	t.Run("refreshed token drops the claim", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/auth/token-refresh", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.SessionResponse
		unmarshal(t, rec, &resp)

		rec = do(app, http.MethodGet, "/v1/auth/portal", resp.Token)
		var portal echoapi.PortalResponse
		unmarshal(t, rec, &portal)
		assert.False(t, portal.IsAdmin)
		assert.Equal(t, auth.StudentDashboardPath, portal.Dashboard)
	})

	t.Run("deleted user has no session", func(t *testing.T) {
		gone := createUser(t, "Gone", "gone@test.za", "", user.RoleAdmin)
		goneToken := getToken(t, gone)
		require.NoError(t, usrRepo.DeleteUser(context.Background(), gone.ID))

		runTests(t, app, []httpTest{
			{
				name: "admin route", path: "/v1/admin/courses", token: goneToken, wantCode: http.StatusUnauthorized,
				wantData: marshalObj(t, gateErr{Error: "user not authenticated", Redirect: auth.SignInPath}),
			},
			{
				name: "decision", path: "/v1/auth/route/admin", token: goneToken, wantCode: http.StatusOK,
				wantData: marshalObj(t, auth.Decision{State: auth.StateDenied, Redirect: auth.SignInPath}),
			},
			{
				name: "portal", path: "/v1/auth/portal", token: goneToken, wantCode: http.StatusOK,
				wantData: marshalObj(t, echoapi.PortalResponse{IsAdmin: false, Dashboard: auth.StudentDashboardPath}),
			},
		})
	})
}
