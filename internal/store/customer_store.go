package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"grain_store/internal/model"
)

var (
	// ErrCustomerNotFound 账户不存在。
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerExists 手机号或邮箱已注册。
	ErrCustomerExists = errors.New("customer already exists")
)

// CustomerStore 封装顾客账户表的读写。
type CustomerStore struct {
	db *gorm.DB
}

func NewCustomerStore(db *gorm.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// Create 注册新账户；主键/邮箱冲突转成 ErrCustomerExists。
func (s *CustomerStore) Create(c *model.Customer) error {
	if err := s.db.Create(c).Error; err != nil {
		if errorsLikeUnique(err) {
			return ErrCustomerExists
		}
		return err
	}
	return nil
}

// Get 按归一化手机号查账户。
func (s *CustomerStore) Get(phone string) (*model.Customer, error) {
	var c model.Customer
	if err := s.db.Where("phone = ?", phone).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByIdentifier 按手机号或邮箱查账户（登录入口两者皆可）。
func (s *CustomerStore) GetByIdentifier(identifier string) (*model.Customer, error) {
	var c model.Customer
	q := s.db
	if strings.Contains(identifier, "@") {
		q = q.Where("email = ?", identifier)
	} else {
		q = q.Where("phone = ?", identifier)
	}
	if err := q.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByEmail 按邮箱查账户（忘记 PIN 流程）。
func (s *CustomerStore) GetByEmail(email string) (*model.Customer, error) {
	var c model.Customer
	if err := s.db.Where("email = ?", email).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdatePinHash 重置 PIN。返回 false 表示账户不存在。
func (s *CustomerStore) UpdatePinHash(phone, pinHash string) (bool, error) {
	res := s.db.Model(&model.Customer{}).Where("phone = ?", phone).Update("pin_hash", pinHash)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAll 管理端账户列表，新账户在前。
func (s *CustomerStore) ListAll() ([]model.Customer, error) {
	var list []model.Customer
	err := s.db.Order("created_at DESC").Find(&list).Error
	return list, err
}
