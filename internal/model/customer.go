package model

import (
	"time"

	"gorm.io/gorm"
)

// Customer 顾客账户，phone 为主键（10 位手机号，入库前已归一化）。
// PIN 只存 bcrypt 哈希；取消记录不落在这张表上，而是放在 Redis 滑动窗口里。
type Customer struct {
	Phone     string         `gorm:"primarykey;size:16" json:"phone"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name    string `gorm:"size:128;not null" json:"name"`
	Email   string `gorm:"size:128;uniqueIndex" json:"email"`
	Address string `gorm:"size:255" json:"address"`
	PinHash string `gorm:"size:128;not null" json:"-"`
}

func (Customer) TableName() string { return "customers" }
