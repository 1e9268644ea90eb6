package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestPasswordValidation(t *testing.T) {
	validate := newTestValidator()

	tests := []struct {
		name    string
		pwd     string
		wantErr bool
	}{
		{name: "too short", pwd: "G0od#pa", wantErr: true},
		{name: "whitespace", pwd: "G0od #Password", wantErr: true},
		{name: "all numeric", pwd: "123456789", wantErr: true},
		{name: "no uppercase", pwd: "g0od#password", wantErr: true},
		{name: "no digit", pwd: "Good#Password", wantErr: true},
		{name: "no special", pwd: "G0odPassword", wantErr: true},
		{name: "similar to username", pwd: "Karibu#01", wantErr: true},
		{name: "valid", pwd: "G0od#Password", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Test User",
				Username:        "karibu01",
				Email:           "karibu01@test.cd",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate := newTestValidator()

	nu := NewUser{
		Name:            "Test User",
		Username:        "tester01",
		Email:           "tester01@test.cd",
		Password:        "G0od#Password",
		PasswordConfirm: "G0od#Password",
		Roles:           []string{"superhero:"},
	}
	if err := validate.Struct(nu); err == nil {
		t.Error("validate.Struct() accepted unknown roles")
	}

	nu.Roles = []string{RoleTeacher, RoleAdmin}
	if err := validate.Struct(nu); err != nil {
		t.Errorf("validate.Struct() rejected known roles: %v", err)
	}
}

func TestUserRoles(t *testing.T) {
	admin := User{Roles: []string{RoleAdminPrincipal}}
	if !admin.IsAdmin() || admin.IsTeacher() {
		t.Error("principal must be admin and not teacher")
	}

	teacher := User{Roles: []string{RoleTeacher}}
	if teacher.IsAdmin() || !teacher.IsTeacher() {
		t.Error("teacher must be teacher and not admin")
	}

	if MaxRolePriority([]string{RoleTeacher, RoleAdminOwner}) != 30 {
		t.Error("owner must out-rank teacher")
	}
	if MaxRolePriority(nil) != 0 {
		t.Error("no roles must have zero priority")
	}
}
