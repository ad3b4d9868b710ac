package store

import (
	"gorm.io/gorm"

	"grain_store/internal/model"
)

// ProductStore 商品目录的只读查询 + 首次启动时的种子数据。
type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// ListProducts 按分类、名称排序返回全部商品。
func (s *ProductStore) ListProducts() ([]model.Product, error) {
	var list []model.Product
	err := s.db.Order("category, name").Find(&list).Error
	return list, err
}

// SeedDefaults 目录为空时灌入默认商品，幂等。
func (s *ProductStore) SeedDefaults() error {
	var count int64
	if err := s.db.Model(&model.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.db.Create(defaultProducts()).Error
}

func defaultProducts() []model.Product {
	return []model.Product{
		{Name: "Taza Milk (500ml)", Price: 28, Description: "Fresh pasteurized toned milk, daily delivery", Category: "Dairy"},
		{Name: "White Bread Loaf", Price: 45, Description: "Soft sliced white bread, freshly baked", Category: "Bakery"},
		{Name: "Basmati Rice (1kg)", Price: 85, Description: "Premium aged long-grain basmati rice", Category: "Grains"},
		{Name: "Sunflower Oil (1L)", Price: 150, Description: "Refined sunflower cooking oil, heart-healthy", Category: "Cooking"},
		{Name: "Toor Dal (1kg)", Price: 120, Description: "Split pigeon peas, protein-rich staple", Category: "Pulses"},
		{Name: "Sugar (1kg)", Price: 48, Description: "Fine crystal white sugar", Category: "Essentials"},
		{Name: "Amul Butter (100g)", Price: 56, Description: "Pasteurized salted butter, creamy & fresh", Category: "Dairy"},
		{Name: "Red Chilli Powder (200g)", Price: 65, Description: "Spicy Kashmiri red chilli powder", Category: "Spices"},
		{Name: "Turmeric Powder (200g)", Price: 42, Description: "Pure haldi powder for cooking & health", Category: "Spices"},
		{Name: "Tea Leaves (250g)", Price: 110, Description: "Premium CTC Assam tea leaves", Category: "Beverages"},
		{Name: "Wheat Atta (5kg)", Price: 220, Description: "Whole wheat flour, stone-ground fresh", Category: "Grains"},
		{Name: "Salt (1kg)", Price: 20, Description: "Iodized refined salt, daily essential", Category: "Essentials"},
		{Name: "Eggs (12 pcs)", Price: 78, Description: "Farm-fresh brown eggs, protein-packed", Category: "Dairy"},
		{Name: "Onion (1kg)", Price: 35, Description: "Fresh red onions, kitchen staple", Category: "Vegetables"},
		{Name: "Potato (1kg)", Price: 30, Description: "Fresh aloo, versatile and nutritious", Category: "Vegetables"},
		{Name: "Tomato (1kg)", Price: 40, Description: "Ripe red tomatoes for gravy and salad", Category: "Vegetables"},
		{Name: "Maggi Noodles (4 pack)", Price: 56, Description: "2-minute instant masala noodles", Category: "Snacks"},
		{Name: "Biscuits Pack (200g)", Price: 30, Description: "Crunchy glucose biscuits, tea-time snack", Category: "Snacks"},
		{Name: "Curd (400g)", Price: 35, Description: "Thick creamy dahi, probiotic-rich", Category: "Dairy"},
		{Name: "Soap Bar (3 pack)", Price: 99, Description: "Neem antibacterial bath soap, pack of 3", Category: "Personal Care"},
	}
}
