package model

import (
	"strconv"
	"time"
)

// Post 帖子；默认按 pub_date 倒序
type Post struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	PubDate  time.Time `json:"pub_date" gorm:"autoCreateTime;index:idx_post_pub_date;not null"`
	AuthorID uint      `json:"author_id" gorm:"not null;index:idx_post_author"`
	Author   User      `json:"author" gorm:"constraint:OnDelete:CASCADE;"`
	// 社区被删除时置空而不是删帖
	GroupID *uint  `json:"group_id,omitempty" gorm:"index:idx_post_group"`
	Group   *Group `json:"group,omitempty" gorm:"constraint:OnDelete:SET NULL;"`
	Image   string `json:"image,omitempty" gorm:"type:varchar(255)"`
}

func (Post) TableName() string { return "posts" }

// String 前 15 个字符
func (p Post) String() string {
	r := []rune(p.Text)
	if len(r) > 15 {
		r = r[:15]
	}
	return string(r)
}

// URL 帖子详情页地址
func (p Post) URL() string { return "/posts/" + strconv.FormatUint(uint64(p.ID), 10) + "/" }

// PostOrder 列表默认排序
const PostOrder = "pub_date DESC, id DESC"
