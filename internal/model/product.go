package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品目录条目。目录对本服务是只读查询源，价格以服务端为准。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string  `gorm:"size:128;not null" json:"name"`
	Price       float64 `gorm:"not null" json:"price"`
	Description string  `gorm:"size:255" json:"description"`
	ImageURL    string  `gorm:"size:255" json:"image_url"`
	Category    string  `gorm:"size:64;index" json:"category"`
}

func (Product) TableName() string { return "products" }
