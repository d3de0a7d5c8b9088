package model

import "time"

// Comment 评论；帖子删除时级联删除
type Comment struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	PostID   uint      `json:"post_id" gorm:"not null;index:idx_comment_post"`
	Post     Post      `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	AuthorID uint      `json:"author_id" gorm:"not null;index"`
	Author   User      `json:"author" gorm:"constraint:OnDelete:CASCADE;"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	Created  time.Time `json:"created" gorm:"autoCreateTime;not null"`
}

func (Comment) TableName() string { return "comments" }

func (c Comment) String() string {
	r := []rune(c.Text)
	if len(r) > 15 {
		r = r[:15]
	}
	return string(r)
}
