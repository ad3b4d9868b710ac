package lifecycle

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"grain_store/internal/hub"
	"grain_store/internal/model"
	"grain_store/internal/queue"
	"grain_store/internal/store"
	"grain_store/internal/throttle"
)

const (
	// MaxQuantity 单行购买数量上限。
	MaxQuantity = 100
	// totalTolerance 吸收浮点舍入，不吸收逻辑错误。
	totalTolerance = 1.0
)

// Catalog 只读商品目录协作方，价格以查询时刻为准。
type Catalog interface {
	ListProducts() ([]model.Product, error)
}

// Broadcaster 状态变更的实时推送出口。
type Broadcaster interface {
	BroadcastAll(ev hub.Event)
}

// Service 订单状态机：建单校验、发号、OTP 门禁、取消节流与变更后的扇出。
type Service struct {
	catalog  Catalog
	orders   *store.OrderStore
	seq      Sequencer
	throttle *throttle.Throttle
	hub      Broadcaster
	outbox   *queue.Outbox // 可为 nil（纯同步部署）

	now func() time.Time
	otp func() string
}

// Sequencer 原子发号器契约：并发调用永不重复，严格递增。
type Sequencer interface {
	Next(ctx context.Context) (int64, error)
}

func NewService(catalog Catalog, orders *store.OrderStore, seq Sequencer, th *throttle.Throttle, b Broadcaster, outbox *queue.Outbox) *Service {
	return &Service{
		catalog:  catalog,
		orders:   orders,
		seq:      seq,
		throttle: th,
		hub:      b,
		outbox:   outbox,
		now:      time.Now,
		otp:      randomOTP,
	}
}

// CartLine 客户端提交的一行购物车。价格一律不信任客户端，只看 ProductID 与数量。
type CartLine struct {
	ProductID uint `json:"product_id" binding:"required,min=1"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=100"`
}

// CreateInput 建单请求。
type CreateInput struct {
	Items        []CartLine
	Total        float64
	DeliveryType string
	Address      string
}

// CreateOrder 建单主流程：
// 1. 取消窗口检查（窗口饱和直接拒绝）
// 2. 按目录快照逐行校验并用服务端价格重算小计与总价
// 3. 原子发号
// 4. 送货单生成 4 位交付 OTP
// 5. 落库
func (s *Service) CreateOrder(ctx context.Context, phone string, in CreateInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if in.DeliveryType == "" {
		in.DeliveryType = model.DeliveryPickup
	}
	if in.DeliveryType == model.DeliveryHome && in.Address == "" {
		return nil, ErrAddressRequired
	}

	if err := s.throttle.CheckCanOrder(ctx, phone); err != nil {
		return nil, err
	}

	products, err := s.catalog.ListProducts()
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	byID := make(map[uint]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	var calculated float64
	for _, line := range in.Items {
		if line.Quantity < 1 || line.Quantity > MaxQuantity {
			return nil, &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		subtotal := p.Price * float64(line.Quantity)
		calculated += subtotal
		items = append(items, model.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
	}

	if math.Abs(calculated-in.Total) > totalTolerance {
		return nil, ErrTotalMismatch
	}

	n, err := s.seq.Next(ctx)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		Token:        model.FormatToken(n),
		Phone:        phone,
		Total:        calculated,
		Status:       model.StatusProcessing,
		DeliveryType: in.DeliveryType,
		Address:      in.Address,
	}
	if err := order.SetItems(items); err != nil {
		return nil, err
	}
	if in.DeliveryType == model.DeliveryHome {
		order.DeliveryOTP = s.otp()
	}

	if err := s.orders.Create(order); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder 顾客取消自己的订单。仅 Processing 可取消：
// 订单一旦备好，回退属于运营动作，不开放给顾客。
// 返回窗口内的取消次数，供上层拼提示语。
func (s *Service) CancelOrder(ctx context.Context, phone, token string) (*model.Order, int, error) {
	o, err := s.orders.GetByToken(token)
	if err != nil {
		return nil, 0, err
	}
	if o.Phone != phone {
		return nil, 0, ErrNotOwner
	}
	if o.Status != model.StatusProcessing {
		return nil, 0, &InvalidTransitionError{From: o.Status, To: model.StatusCancelled}
	}

	ok, err := s.orders.UpdateStatus(token, model.StatusCancelled, nil)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, store.ErrNotFound
	}

	// 取消已提交；计数失败只记日志，不让请求失败。
	count, err := s.throttle.RecordCancellation(ctx, phone)
	if err != nil {
		log.Printf("record cancellation for %s: %v", phone, err)
	}

	o.Status = model.StatusCancelled
	s.notify(ctx, o)
	return o, count, nil
}

// UpdateStatus 管理员状态迁移。合法目标只有 Ready for Pickup 与 Delivered；
// 送货单转 Delivered 需要 OTP 精确匹配。
func (s *Service) UpdateStatus(ctx context.Context, token string, target model.OrderStatus, otp string) (*model.Order, error) {
	o, err := s.orders.GetByToken(token)
	if err != nil {
		return nil, err
	}

	switch target {
	case model.StatusReady:
		if o.Status != model.StatusProcessing {
			return nil, &InvalidTransitionError{From: o.Status, To: target}
		}
		ok, err := s.orders.UpdateStatus(token, target, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, store.ErrNotFound
		}

	case model.StatusDelivered:
		if o.Status != model.StatusReady {
			return nil, &InvalidTransitionError{From: o.Status, To: target}
		}
		if o.DeliveryType == model.DeliveryHome {
			if otp == "" {
				return nil, ErrOtpRequired
			}
			if otp != o.DeliveryOTP {
				return nil, ErrOtpMismatch
			}
		}
		deliveredAt := s.now()
		ok, err := s.orders.UpdateStatus(token, target, &deliveredAt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, store.ErrNotFound
		}
		o.DeliveredAt = &deliveredAt

	default:
		// 管理端不允许取消或回退到 Processing。
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}

	o.Status = target
	s.notify(ctx, o)
	return o, nil
}

// CancelLimit 窗口内允许的最大取消次数（提示语用）。
func (s *Service) CancelLimit() int {
	return s.throttle.Limit()
}

// GetOrder 按订单号查询。
func (s *Service) GetOrder(token string) (*model.Order, error) {
	return s.orders.GetByToken(token)
}

// OrdersByPhone 顾客的历史订单，新单在前。
func (s *Service) OrdersByPhone(phone string) ([]model.Order, error) {
	return s.orders.GetByPhone(phone)
}

// ListOrders 管理端全量订单。
func (s *Service) ListOrders() ([]store.OrderWithCustomer, error) {
	return s.orders.ListAll()
}

// notify 在权威状态已提交后做扇出：hub 实时推送 + outbox 审计事件。
// 两者都是尽力而为，失败只记日志，绝不作为请求错误上抛。
func (s *Service) notify(ctx context.Context, o *model.Order) {
	s.hub.BroadcastAll(hub.StatusUpdate(o.Token, string(o.Status)))

	if s.outbox == nil {
		return
	}
	msg := queue.StatusMessage{
		EventID: uuid.New().String(),
		Token:   o.Token,
		Phone:   o.Phone,
		Status:  string(o.Status),
		AtMs:    s.now().UnixMilli(),
	}
	if err := s.outbox.Append(ctx, msg); err != nil {
		log.Printf("status outbox append token=%s: %v", o.Token, err)
	}
}

// randomOTP 生成 4 位数字交付码，创建时绑定一次，绝不重发。
func randomOTP() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}
