package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态机的节点。
// 合法迁移：Processing → Ready for Pickup | Cancelled；Ready for Pickup → Delivered。
type OrderStatus string

const (
	StatusProcessing OrderStatus = "Processing"
	StatusReady      OrderStatus = "Ready for Pickup"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// 配送方式：到店自提或送货上门。送货单在创建时生成 4 位交付 OTP。
const (
	DeliveryPickup = "pickup"
	DeliveryHome   = "delivery"
)

// OrderItem 是订单内的一行商品，价格与小计均为服务端按目录重算的结果。
type OrderItem struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// TokenPrefix 订单号展示前缀，完整形式如 STORE-101。
const TokenPrefix = "STORE-"

// FormatToken 将计数器值渲染成对外订单号。
func FormatToken(n int64) string {
	return fmt.Sprintf("%s%d", TokenPrefix, n)
}

// Order 顾客订单。Token 形如 STORE-101，全局唯一且单调递增。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Token string `gorm:"size:32;uniqueIndex;not null" json:"token"`
	Phone string `gorm:"size:16;not null;index" json:"phone"`
	// ItemsJSON 为序列化后的 []OrderItem（沿用行式明细不值得单独建表的取舍）。
	ItemsJSON    string      `gorm:"type:text;not null" json:"items_json"`
	Total        float64     `gorm:"not null" json:"total"`
	Status       OrderStatus `gorm:"size:32;not null;default:'Processing';index" json:"status"`
	DeliveryType string      `gorm:"size:16;not null;default:'pickup'" json:"delivery_type"`
	Address      string      `gorm:"size:255" json:"address,omitempty"`
	// DeliveryOTP 仅送货单持有，创建时生成一次，绝不重发；不对外序列化。
	DeliveryOTP string     `gorm:"size:8" json:"-"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

func (Order) TableName() string { return "orders" }

// Items 反序列化订单明细。
func (o *Order) Items() ([]OrderItem, error) {
	var items []OrderItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItems 序列化订单明细。
func (o *Order) SetItems(items []OrderItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.ItemsJSON = string(b)
	return nil
}
