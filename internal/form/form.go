// Package form 校验用户提交的帖子与评论，失败时返回字段级错误
package form

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors 字段名 -> 错误信息
type FieldErrors map[string]string

// NonFieldErrors 不属于任何字段的错误
const NonFieldErrors = "__all__"

// InvalidSubmission 请求体无法解析
const InvalidSubmission = "Invalid form submission."

// Invalid 把整个表单标记为无法解析
func (e FieldErrors) Invalid() { e[NonFieldErrors] = InvalidSubmission }

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for k, v := range e {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, "; ")
}

// Has 模板中判断字段是否出错
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误里使用表单字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(s interface{}, errs FieldErrors) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs[NonFieldErrors] = err.Error()
		return
	}
	for _, fe := range verrs {
		errs[fe.Field()] = message(fe)
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "numeric":
		return "Select a valid choice."
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	case "min":
		return "Ensure this value has at least " + fe.Param() + " characters."
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return "Enter a valid value."
	}
}
