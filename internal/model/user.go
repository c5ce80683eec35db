package model

import (
	"time"
)

// User 以身份提供方的 uid 作为主键，订阅字段内嵌存储
type User struct {
	ID           string       `gorm:"primaryKey;size:128" json:"id"`
	Email        *string      `gorm:"size:100" json:"email,omitempty"`
	DisplayName  string       `gorm:"size:100" json:"display_name"`
	Subscription Subscription `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
