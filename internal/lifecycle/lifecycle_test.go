package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"grain_store/internal/hub"
	"grain_store/internal/model"
	"grain_store/internal/queue"
	"grain_store/internal/store"
	"grain_store/internal/testutil"
	"grain_store/internal/throttle"
	rediskey "grain_store/pkg/redis"
)

const (
	ownerPhone = "9876543210"
	otherPhone = "9123456780"
)

// eventRecorder 捕获广播事件，替代真实 websocket hub。
type eventRecorder struct {
	mu     sync.Mutex
	events []hub.Event
}

func (r *eventRecorder) BroadcastAll(ev hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []hub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.Event(nil), r.events...)
}

type env struct {
	svc       *Service
	rec       *eventRecorder
	throttle  *throttle.Throttle
	orders    *store.OrderStore
	streamLen func() int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenTestDB(t)
	rdb, _ := testutil.NewTestRedis(t)

	testutil.SeedProducts(t, db, []model.Product{
		{Name: "Basmati Rice (1kg)", Price: 40, Category: "Grains"},
		{Name: "Sunflower Oil (1L)", Price: 150, Category: "Cooking"},
	})

	products := store.NewProductStore(db)
	orders := store.NewOrderStore(db)

	seq := rediskey.NewSequencer(rdb)
	if err := seq.Seed(context.Background(), 0); err != nil {
		t.Fatalf("seed sequencer: %v", err)
	}

	th := throttle.New(rdb, time.Hour, 3)
	rec := &eventRecorder{}
	outbox := queue.NewOutbox(rdb, "grain_store:status_events")

	svc := NewService(products, orders, seq, th, rec, outbox)
	svc.otp = func() string { return "0042" }

	return &env{
		svc:      svc,
		rec:      rec,
		throttle: th,
		orders:   orders,
		streamLen: func() int64 {
			n, err := rdb.XLen(context.Background(), "grain_store:status_events").Result()
			if err != nil {
				t.Fatalf("xlen: %v", err)
			}
			return n
		},
	}
}

func pickupInput() CreateInput {
	return CreateInput{
		Items: []CartLine{{ProductID: 1, Quantity: 2}},
		Total: 80,
	}
}

func TestCreateOrderIssuesSequentialTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		want := fmt.Sprintf("STORE-%d", 101+i)
		if o.Token != want {
			t.Fatalf("token = %s, want %s", o.Token, want)
		}
		if o.Status != model.StatusProcessing {
			t.Fatalf("status = %s, want Processing", o.Status)
		}
	}
}

func TestCreateOrderRecomputesTotalServerSide(t *testing.T) {
	e := newEnv(t)

	// 客户端声称 80.9，服务端按目录重算为 80，容差内接受且以 80 为准
	in := pickupInput()
	in.Total = 80.9
	o, err := e.svc.CreateOrder(context.Background(), ownerPhone, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Total != 80 {
		t.Fatalf("total = %v, want server-side 80", o.Total)
	}

	items, err := o.Items()
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items[0].Price != 40 || items[0].Subtotal != 80 {
		t.Fatalf("line not recomputed from catalog: %+v", items[0])
	}
}

func TestCreateOrderTotalMismatch(t *testing.T) {
	e := newEnv(t)

	in := pickupInput()
	in.Total = 78.9 // 偏差 1.1 > 容差 1.0
	if _, err := e.svc.CreateOrder(context.Background(), ownerPhone, in); !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch, got %v", err)
	}
}

func TestCreateOrderProductNotFound(t *testing.T) {
	e := newEnv(t)

	in := CreateInput{Items: []CartLine{{ProductID: 99, Quantity: 1}}, Total: 10}
	var pnf *ProductNotFoundError
	if _, err := e.svc.CreateOrder(context.Background(), ownerPhone, in); !errors.As(err, &pnf) {
		t.Fatalf("expected ProductNotFoundError, got %v", err)
	}
	if pnf.ProductID != 99 {
		t.Fatalf("product id = %d, want 99", pnf.ProductID)
	}
}

func TestCreateOrderQuantityBounds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := CreateInput{Items: []CartLine{{ProductID: 1, Quantity: 101}}, Total: 4040}
	var iq *InvalidQuantityError
	if _, err := e.svc.CreateOrder(ctx, ownerPhone, in); !errors.As(err, &iq) {
		t.Fatalf("expected InvalidQuantityError, got %v", err)
	}

	in = CreateInput{Items: []CartLine{{ProductID: 1, Quantity: 100}}, Total: 4000}
	if _, err := e.svc.CreateOrder(ctx, ownerPhone, in); err != nil {
		t.Fatalf("quantity 100 must be allowed: %v", err)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.CreateOrder(context.Background(), ownerPhone, CreateInput{Total: 1}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateDeliveryOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// 送货缺地址拒绝
	in := pickupInput()
	in.DeliveryType = model.DeliveryHome
	if _, err := e.svc.CreateOrder(ctx, ownerPhone, in); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}

	in.Address = "12 Market Road"
	o, err := e.svc.CreateOrder(ctx, ownerPhone, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.DeliveryOTP != "0042" {
		t.Fatalf("delivery order must carry OTP, got %q", o.DeliveryOTP)
	}

	// 自提单不生成 OTP
	o2, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if err != nil {
		t.Fatalf("create pickup: %v", err)
	}
	if o2.DeliveryOTP != "" {
		t.Fatalf("pickup order must not carry OTP")
	}
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	before := e.streamLen()

	cancelled, count, err := e.svc.CancelOrder(ctx, ownerPhone, o.Token)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", cancelled.Status)
	}
	if count != 1 {
		t.Fatalf("cancellation count = %d, want 1", count)
	}

	// 已提交的状态变更必须扇出：hub 事件 + outbox 审计
	evs := e.rec.all()
	if len(evs) != 1 || evs[0].Type != "status_update" || evs[0].Token != o.Token || evs[0].Status != "Cancelled" {
		t.Fatalf("broadcast mismatch: %+v", evs)
	}
	if e.streamLen() != before+1 {
		t.Fatalf("outbox not appended")
	}

	// 持久化状态也要一致
	stored, _ := e.orders.GetByToken(o.Token)
	if stored.Status != model.StatusCancelled {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestCancelGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 非本人
	if _, _, err := e.svc.CancelOrder(ctx, otherPhone, o.Token); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	// 不存在
	if _, _, err := e.svc.CancelOrder(ctx, ownerPhone, "STORE-999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// 非 Processing 不可取消
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, ""); err != nil {
		t.Fatalf("ready: %v", err)
	}
	var bad *InvalidTransitionError
	if _, _, err := e.svc.CancelOrder(ctx, ownerPhone, o.Token); !errors.As(err, &bad) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

// 规约场景：取消 3 次后第 4 次建单被节流拒绝。
func TestCancelThreeTimesBlocksFourthOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		_, count, err := e.svc.CancelOrder(ctx, ownerPhone, o.Token)
		if err != nil {
			t.Fatalf("cancel #%d: %v", i, err)
		}
		if count != i {
			t.Fatalf("cancel #%d count = %d", i, count)
		}
	}

	var blocked *throttle.BlockedError
	if _, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput()); !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError on 4th create, got %v", err)
	}
	if blocked.Count != 3 {
		t.Fatalf("blocked count = %d, want 3", blocked.Count)
	}

	// 其他顾客不受影响
	if _, err := e.svc.CreateOrder(ctx, otherPhone, pickupInput()); err != nil {
		t.Fatalf("other customer blocked unexpectedly: %v", err)
	}
}

func TestAdminStatusTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Processing 不能直接 Delivered
	var bad *InvalidTransitionError
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusDelivered, ""); !errors.As(err, &bad) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	ready, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, "")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if ready.Status != model.StatusReady {
		t.Fatalf("status = %s", ready.Status)
	}

	// Ready 不能再次 Ready
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, ""); !errors.As(err, &bad) {
		t.Fatalf("expected InvalidTransitionError on Ready->Ready, got %v", err)
	}

	delivered, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusDelivered, "")
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if delivered.Status != model.StatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("delivered mismatch: %+v", delivered)
	}

	// 终态之后一切迁移被拒
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, ""); !errors.As(err, &bad) {
		t.Fatalf("expected InvalidTransitionError after terminal state, got %v", err)
	}

	// 管理端不允许取消
	o2, _ := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if _, err := e.svc.UpdateStatus(ctx, o2.Token, model.StatusCancelled, ""); !errors.As(err, &bad) {
		t.Fatalf("expected InvalidTransitionError for admin cancel, got %v", err)
	}
}

func TestDeliveredRequiresMatchingOtp(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := pickupInput()
	in.DeliveryType = model.DeliveryHome
	in.Address = "12 Market Road"
	o, err := e.svc.CreateOrder(ctx, ownerPhone, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, ""); err != nil {
		t.Fatalf("ready: %v", err)
	}

	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusDelivered, ""); !errors.Is(err, ErrOtpRequired) {
		t.Fatalf("expected ErrOtpRequired, got %v", err)
	}
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusDelivered, "9999"); !errors.Is(err, ErrOtpMismatch) {
		t.Fatalf("expected ErrOtpMismatch, got %v", err)
	}

	delivered, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusDelivered, "0042")
	if err != nil {
		t.Fatalf("delivered with otp: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatalf("delivered_at not set")
	}
}

func TestStatusChangeBroadcastsToHub(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	o, err := e.svc.CreateOrder(ctx, ownerPhone, pickupInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.svc.UpdateStatus(ctx, o.Token, model.StatusReady, ""); err != nil {
		t.Fatalf("ready: %v", err)
	}

	evs := e.rec.all()
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	want := hub.Event{Type: "status_update", Token: o.Token, Status: "Ready for Pickup"}
	if evs[0] != want {
		t.Fatalf("event = %+v, want %+v", evs[0], want)
	}
}
