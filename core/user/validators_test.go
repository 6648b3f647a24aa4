package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})
	return validate
}

func TestNewUser_passwordPolicy(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "not complex", pwd: "abcdefgh1", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Learner#1", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd1", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Zq7#vT9!mw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Jane Doe",
				Username:        "learner",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !assert.True(t, ok, "want validator.ValidationErrors, got %v", err) {
				return
			}
			assert.Equal(t, "password", vErrs[0].Field())
			assert.Equal(t, tt.wantTag, vErrs[0].Tag())
		})
	}
}

func TestNewUser_usernameOrEmail(t *testing.T) {
	validate := newValidator()

	nu := NewUser{Name: "Jane Doe", Password: "Zq7#vT9!mw", PasswordConfirm: "Zq7#vT9!mw"}
	err := validate.Struct(nu)
	vErrs, ok := err.(validator.ValidationErrors)
	if !assert.True(t, ok) {
		return
	}
	fields := make([]string, 0, len(vErrs))
	for _, e := range vErrs {
		fields = append(fields, e.Field())
	}
	assert.ElementsMatch(t, []string{"username", "email"}, fields)
}

func TestNewUser_roles(t *testing.T) {
	validate := newValidator()

	nu := NewUser{
		Name:            "Jane Doe",
		Email:           "jane@test.cd",
		Password:        "Zq7#vT9!mw",
		PasswordConfirm: "Zq7#vT9!mw",
		Roles:           []string{RoleStudent, "root"},
	}
	assert.Error(t, validate.Struct(nu))

	nu.Roles = []string{RoleStudent, RoleTeacher}
	assert.NoError(t, validate.Struct(nu))
}

func TestValidatePassword(t *testing.T) {
	LoadCommonPasswords(nopLogger{})
	usr := User{Name: "Jane Doe", Username: "learner"}

	err := ValidatePassword("short", usr)
	if assert.Error(t, err) {
		vErr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) {
			assert.Equal(t, "password", vErr.Fields[0].Field)
			assert.Equal(t, pwdMinLenText, vErr.Fields[0].Error)
		}
	}
	assert.NoError(t, ValidatePassword("Zq7#vT9!mw", usr))
}

func TestUser_roles(t *testing.T) {
	admin := User{Roles: []string{RoleAdminOwner}}
	teacher := User{Roles: []string{RoleTeacher}}
	student := User{Roles: []string{RoleStudent}}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff())
	assert.True(t, teacher.IsStaff())
	assert.False(t, teacher.IsAdmin())
	assert.False(t, student.IsStaff())
	assert.True(t, student.IsStudent())
	assert.Equal(t, 30, MaxRolePriority([]string{RoleStudent, RoleAdminOwner}))
}
