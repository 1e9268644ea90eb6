package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func TestUserApi_userLogin(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "G0od#Password", user.AdminRoles, true)
	testutil.CreateUser(t, usrRepo, "Gone User", "goneuser", "gone@test.cd", "G0od#Password", nil, false)

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "Login required fields", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name: "Unknown user fails", method: http.MethodPost, path: "/v1/users/login",
			body: loginBody("nobody", "G0od#Password"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password fails", method: http.MethodPost, path: "/v1/users/login",
			body: loginBody("neemaadmin", "wrong"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account is rejected", method: http.MethodPost, path: "/v1/users/login",
			body: loginBody("goneuser", "G0od#Password"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Email works too", method: http.MethodPost, path: "/v1/users/login",
			body: loginBody("Neema@Test.cd", "G0od#Password"), wantCode: http.StatusOK, extra: "checkToken",
		},
		{
			name: "Valid credentials return a token", method: http.MethodPost, path: "/v1/users/login",
			body: loginBody("neemaadmin", "G0od#Password"), wantCode: http.StatusOK, extra: "checkToken",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.extra == "checkToken" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var res LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if res.Token == "" {
					t.Error("login returned an empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserApi_tokenRefresh(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "", user.AdminRoles, true)
	token := getToken(t, usr)

	// no token
	req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	// fresh token refreshes fine
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var res LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if res.Token == "" {
		t.Error("refresh returned an empty token")
	}

	// a deactivated user cannot refresh
	inactive := false
	if _, err := usrRepo.UpdateUser(context.Background(), usr, &inactive); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
	}, rec)
}

func TestUserApi_userCreate(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "", user.AdminRoles, true)
	principal := testutil.CreateUser(t, usrRepo, "Principal", "principal01", "principal@test.cd", "", []string{user.RoleAdminPrincipal}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Mwalimu Neema", "mwalimu01", "mwalimu@test.cd", "", user.TeacherRoles, true)

	adminToken := getToken(t, admin)
	principalToken := getToken(t, principal)
	teacherToken := getToken(t, teacher)

	newUserBody := func(uname, email string, roles []string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New Staff",
			Username:        uname,
			Email:           email,
			Password:        "G0od#Password",
			PasswordConfirm: "G0od#Password",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/users/register",
			body: newUserBody("newstaff", "staff@test.cd", user.TeacherRoles), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/users/register",
			body: newUserBody("newstaff", "staff@test.cd", user.TeacherRoles), token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Taken username fails", method: http.MethodPost, path: "/v1/users/register",
			body: newUserBody("mwalimu01", "other@test.cd", user.TeacherRoles), token: adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUserExists.Error()}),
		},
		{
			name: "Cannot grant a higher role", method: http.MethodPost, path: "/v1/users/register",
			body: newUserBody("newowner", "owner@test.cd", []string{user.RoleAdminOwner}), token: principalToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "Admin can register staff", method: http.MethodPost, path: "/v1/users/register",
			body: newUserBody("newstaff", "staff@test.cd", user.TeacherRoles), token: adminToken,
			wantCode: http.StatusCreated, extra: "checkUser",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.extra == "checkUser" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var res user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if res.Username != "newstaff" {
					t.Errorf("Username = %s, want newstaff", res.Username)
				}
				if !res.IsTeacher() {
					t.Errorf("Roles = %v, want teacher", res.Roles)
				}
				if res.IsActive == nil || !*res.IsActive {
					t.Error("new user must be active")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserApi_userQuery(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Mwalimu Juma", "mwalimu01", "mwalimu@test.cd", "", user.TeacherRoles, true)

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/users", token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "All users", method: http.MethodGet, path: "/v1/users", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin, teacher),
		},
		{
			name: "Search filter", method: http.MethodGet, path: "/v1/users?search=mwalimu", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, teacher),
		},
		{
			name: "Role filter", method: http.MethodGet, path: "/v1/users?role=teacher:", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, teacher),
		},
		{
			name: "No match", method: http.MethodGet, path: "/v1/users?search=nobody", token: adminToken,
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserApi_userDetail(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Mwalimu Juma", "mwalimu01", "mwalimu@test.cd", "", user.TeacherRoles, true)

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	tests := []httpTest{
		{
			name: "Own profile", method: http.MethodGet, path: fmt.Sprintf("/v1/users/%s", teacher.ID), token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, teacher),
		},
		{
			name: "Someone else's profile is hidden", method: http.MethodGet, path: fmt.Sprintf("/v1/users/%s", admin.ID), token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Admin sees all profiles", method: http.MethodGet, path: fmt.Sprintf("/v1/users/%s", teacher.ID), token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, teacher),
		},
		{
			name: "Non-admin cannot change roles", method: http.MethodPut, path: fmt.Sprintf("/v1/users/%s", teacher.ID), token: teacherToken,
			body:     marchallObj(t, user.UpdateUser{Roles: user.AdminRoles}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Non-admin can change their name", method: http.MethodPut, path: fmt.Sprintf("/v1/users/%s", teacher.ID), token: teacherToken,
			body:     marchallObj(t, user.UpdateUser{Name: "Mwalimu J."}),
			wantCode: http.StatusOK, extra: "checkName",
		},
		{
			name: "Admin cannot delete themselves", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%s", admin.ID), token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Admin can delete a user", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%s", teacher.ID), token: adminToken,
			wantCode: http.StatusNoContent, extra: "checkDeleted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			switch tt.extra {
			case "checkName":
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var res user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if res.Name != "Mwalimu J." {
					t.Errorf("Name = %s, want Mwalimu J.", res.Name)
				}
			case "checkDeleted":
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if _, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: teacher.ID}); err != user.ErrNotFound {
					t.Errorf("GetUser() error = %v, want %v", err, user.ErrNotFound)
				}
			default:
				checkCodeAndData(t, tt, rec)
			}
		})
	}
}

func TestUserApi_queryRoles(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Neema Admin", "neemaadmin", "neema@test.cd", "", user.AdminRoles, true)
	teacher := testutil.CreateUser(t, usrRepo, "Mwalimu Juma", "mwalimu01", "mwalimu@test.cd", "", user.TeacherRoles, true)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/users/roles", token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Known roles", method: http.MethodGet, path: "/v1/users/roles", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
