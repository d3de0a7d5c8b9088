package form

import (
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// bcrypt 只接受不超过 72 字节的密码
const maxPasswordBytes = 72

// SignupForm 注册表单
type SignupForm struct {
	Username  string      `form:"username" validate:"required,max=150"`
	Email     string      `form:"email" validate:"omitempty,email"`
	Password1 string      `form:"password1" validate:"required,min=8"`
	Password2 string      `form:"password2" validate:"required,eqfield=Password1"`
	Errors    FieldErrors `form:"-" validate:"-"`
}

func NewSignupForm() *SignupForm { return &SignupForm{Errors: FieldErrors{}} }

func (f *SignupForm) Validate() bool {
	if f.Errors == nil {
		f.Errors = FieldErrors{}
	}
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	validateStruct(f, f.Errors)
	if f.Username != "" && !f.Errors.Has("username") && !usernameRe.MatchString(f.Username) {
		f.Errors["username"] = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	if !f.Errors.Has("password1") && len(f.Password1) > maxPasswordBytes {
		f.Errors["password1"] = "Ensure this value has at most 72 bytes."
	}
	return len(f.Errors) == 0
}
