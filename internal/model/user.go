package model

import "time"

// User 站点用户；作者、评论者与关注双方都指向它
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Email     string    `json:"email,omitempty" gorm:"type:varchar(254)"`
	Password  string    `json:"-" gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
