package lifecycle

import (
	"errors"
	"fmt"

	"grain_store/internal/model"
)

var (
	// ErrTotalMismatch 客户端提交的总价与服务端重算结果差超容差。
	ErrTotalMismatch = errors.New("total does not match current prices, please refresh and retry")
	// ErrNotOwner 调用方不是订单归属顾客。
	ErrNotOwner = errors.New("order belongs to another customer")
	// ErrOtpRequired 送货单转 Delivered 必须携带交付 OTP。
	ErrOtpRequired = errors.New("delivery OTP required")
	// ErrOtpMismatch OTP 不匹配。
	ErrOtpMismatch = errors.New("delivery OTP mismatch")
	// ErrAddressRequired 送货单必须有收货地址。
	ErrAddressRequired = errors.New("address required for home delivery")
	// ErrEmptyCart 购物车为空。
	ErrEmptyCart = errors.New("cart must contain at least one item")
)

// ProductNotFoundError 购物车里引用了目录中不存在的商品。
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product ID %d not found", e.ProductID)
}

// InvalidQuantityError 单行购买数量越界。
type InvalidQuantityError struct {
	ProductID uint
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d (allowed 1-%d)", e.Quantity, e.ProductID, MaxQuantity)
}

// InvalidTransitionError 请求的状态迁移不在状态机的有向边上。
type InvalidTransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %q -> %q", e.From, e.To)
}
