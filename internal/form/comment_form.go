package form

import "strings"

// CommentForm 评论表单，post 与 author 由视图填充
type CommentForm struct {
	Text   string      `form:"text" validate:"required"`
	Errors FieldErrors `form:"-" validate:"-"`
}

func NewCommentForm() *CommentForm { return &CommentForm{Errors: FieldErrors{}} }

// Validate 空白文本视为未填写
func (f *CommentForm) Validate() bool {
	if f.Errors == nil {
		f.Errors = FieldErrors{}
	}
	f.Text = strings.TrimSpace(f.Text)
	validateStruct(f, f.Errors)
	return len(f.Errors) == 0
}
