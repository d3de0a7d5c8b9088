package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/d60-Lab/yatube/internal/model"
)

const invalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// ErrUnknownGroup GroupLookup 找不到社区时返回（可包装）
var ErrUnknownGroup = errors.New("unknown group")

// GroupLookup 校验社区是否存在
type GroupLookup interface {
	GetByID(ctx context.Context, id uint) (*model.Group, error)
}

// ImageOptions 图片大小限制，超出宽高时等比缩小
type ImageOptions struct {
	MaxBytes  int64
	MaxWidth  int
	MaxHeight int
}

// Upload 已校验并重新编码的图片
type Upload struct {
	Data        []byte
	Ext         string
	ContentType string
}

// PostForm 发帖/编辑表单
type PostForm struct {
	Text  string `form:"text" validate:"required"`
	Group string `form:"group" validate:"omitempty,numeric"`
	// ClearImage 编辑时勾选“清除图片”
	ClearImage string `form:"image-clear" validate:"-"`

	Image  *multipart.FileHeader `form:"-" validate:"-"`
	Errors FieldErrors           `form:"-" validate:"-"`

	// 当前图片地址，仅用于回显
	CurrentImage string `form:"-" validate:"-"`

	groupID *uint
	upload  *Upload
}

// NewPostForm 用已有帖子预填表单；p 为 nil 时返回空表单
func NewPostForm(p *model.Post) *PostForm {
	f := &PostForm{Errors: FieldErrors{}}
	if p == nil {
		return f
	}
	f.Text = p.Text
	if p.GroupID != nil {
		f.Group = strconv.FormatUint(uint64(*p.GroupID), 10)
	}
	return f
}

// Validate 清洗并校验；返回 false 时 Errors 非空且不应写库。
// 查询社区失败（不是不存在）时返回 error
func (f *PostForm) Validate(ctx context.Context, groups GroupLookup, opts ImageOptions) (bool, error) {
	if f.Errors == nil {
		f.Errors = FieldErrors{}
	}
	f.Text = strings.TrimSpace(f.Text)
	f.Group = strings.TrimSpace(f.Group)
	validateStruct(f, f.Errors)

	if f.Group != "" && !f.Errors.Has("group") {
		id, err := strconv.ParseUint(f.Group, 10, 64)
		if err != nil {
			f.Errors["group"] = "Select a valid choice."
		} else if _, err := groups.GetByID(ctx, uint(id)); err != nil {
			if !errors.Is(err, ErrUnknownGroup) {
				return false, fmt.Errorf("lookup group %d: %w", id, err)
			}
			f.Errors["group"] = "Select a valid choice. That choice is not one of the available choices."
		} else {
			gid := uint(id)
			f.groupID = &gid
		}
	}

	if f.Image != nil {
		up, err := decodeImage(f.Image, opts)
		if err != nil {
			f.Errors["image"] = err.Error()
		} else {
			f.upload = up
		}
	}
	return len(f.Errors) == 0, nil
}

// GroupID 校验通过后的社区 ID，未选择时为 nil
func (f *PostForm) GroupID() *uint { return f.groupID }

// Upload 校验通过后的图片，未上传时为 nil
func (f *PostForm) Upload() *Upload { return f.upload }

// WantsClearImage 是否要求删除现有图片
func (f *PostForm) WantsClearImage() bool { return f.ClearImage != "" && f.upload == nil }

// Selected 模板中标记 <option selected>
func (f *PostForm) Selected(groupID uint) bool {
	return f.Group == strconv.FormatUint(uint64(groupID), 10)
}

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.BMP:  "image/bmp",
	imaging.TIFF: "image/tiff",
}

func decodeImage(fh *multipart.FileHeader, opts ImageOptions) (*Upload, error) {
	if opts.MaxBytes > 0 && fh.Size > opts.MaxBytes {
		return nil, fmt.Errorf("File too large. Maximum size is %d bytes.", opts.MaxBytes)
	}
	format, err := imaging.FormatFromFilename(fh.Filename)
	if err != nil {
		return nil, errors.New(invalidImage)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, errors.New(invalidImage)
	}
	defer src.Close()

	var r io.Reader = src
	if opts.MaxBytes > 0 {
		r = io.LimitReader(src, opts.MaxBytes+1)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(invalidImage)
	}

	b := img.Bounds()
	if (opts.MaxWidth > 0 && b.Dx() > opts.MaxWidth) || (opts.MaxHeight > 0 && b.Dy() > opts.MaxHeight) {
		w, h := opts.MaxWidth, opts.MaxHeight
		if w <= 0 {
			w = b.Dx()
		}
		if h <= 0 {
			h = b.Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return &Upload{Data: buf.Bytes(), Ext: ext, ContentType: contentTypes[format]}, nil
}
