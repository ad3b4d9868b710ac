package store

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"grain_store/internal/model"
)

var (
	// ErrDuplicateToken 订单号撞号。发号器保证不会发生，出现即视为不变量被破坏。
	ErrDuplicateToken = errors.New("duplicate order token")
	// ErrNotFound 订单不存在。
	ErrNotFound = errors.New("order not found")
)

// OrderStore 封装订单表的读写。
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create 落一条新订单；token 唯一索引冲突转成 ErrDuplicateToken。
func (s *OrderStore) Create(order *model.Order) error {
	if err := s.db.Create(order).Error; err != nil {
		if errorsLikeUnique(err) {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

// GetByToken 按订单号查询。
func (s *OrderStore) GetByToken(token string) (*model.Order, error) {
	var o model.Order
	if err := s.db.Where("token = ?", token).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// GetByPhone 查询某顾客的全部订单，新单在前。
func (s *OrderStore) GetByPhone(phone string) ([]model.Order, error) {
	var list []model.Order
	err := s.db.Where("phone = ?", phone).Order("id DESC").Find(&list).Error
	return list, err
}

// UpdateStatus 单条 UPDATE 原子改状态；deliveredAt 非空时一并写入。
// 返回 false 表示订单号不存在。同一订单的并发更新按 last-write-wins 处理，
// 状态流转由上层状态机把关。
func (s *OrderStore) UpdateStatus(token string, status model.OrderStatus, deliveredAt *time.Time) (bool, error) {
	updates := map[string]any{"status": status}
	if deliveredAt != nil {
		updates["delivered_at"] = deliveredAt
	}
	res := s.db.Model(&model.Order{}).Where("token = ?", token).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// OrderWithCustomer 管理端订单列表行：订单 + 顾客姓名（仅展示用 join）。
type OrderWithCustomer struct {
	model.Order
	CustomerName string `json:"customer_name"`
}

// ListAll 全量订单，新单在前，带顾客姓名。
func (s *OrderStore) ListAll() ([]OrderWithCustomer, error) {
	var list []OrderWithCustomer
	err := s.db.Model(&model.Order{}).
		Select("orders.*, customers.name AS customer_name").
		Joins("LEFT JOIN customers ON customers.phone = orders.phone").
		Order("orders.id DESC").
		Scan(&list).Error
	return list, err
}

// MaxTokenNumber 当前已持久化的最大订单号数值，用于发号器冷启动种子。
func (s *OrderStore) MaxTokenNumber() (int64, error) {
	prefixLen := len(model.TokenPrefix)
	var maxNum int64
	err := s.db.Model(&model.Order{}).
		Select("COALESCE(MAX(CAST(SUBSTR(token, ?) AS INTEGER)), 0)", prefixLen+1).
		Scan(&maxNum).Error
	return maxNum, err
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
