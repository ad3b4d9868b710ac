package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"

	"grain_store/internal/auth"
	"grain_store/internal/config"
	"grain_store/internal/hub"
	"grain_store/internal/lifecycle"
	"grain_store/internal/middleware"
	"grain_store/internal/model"
	"grain_store/internal/store"
	rediskey "grain_store/pkg/redis"
)

// Deps 路由层依赖。
type Deps struct {
	RDB       *rd.Client
	Gate      *auth.Gate
	Service   *lifecycle.Service
	Products  *store.ProductStore
	Customers *store.CustomerStore
	Hub       *hub.Hub
	Cfg       config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "Grain Store API", "version": "3.0.0"})
	})

	rateLimit := middleware.RedisRateLimit(d.RDB, d.Cfg.OrderRateLimit, d.Cfg.OrderRateWindow)

	// Products
	r.GET("/api/products", listProducts(d.Products))

	// Auth
	r.POST("/api/auth/signup", rateLimit, signup(d.Customers, d.Gate))
	r.POST("/api/auth/login", rateLimit, login(d.Customers, d.Gate))
	r.POST("/api/auth/admin-login", rateLimit, adminLogin(d.Gate, d.Cfg.AdminPassword))
	r.POST("/api/auth/forgot-pin", rateLimit, forgotPin(d.Customers, d.RDB, d.Cfg))
	r.POST("/api/auth/reset-pin", rateLimit, resetPin(d.Customers, d.RDB))

	// Orders（注意：/history 必须注册在 /:token 之前）
	r.POST("/api/orders", d.Gate.RequireCustomer(), rateLimit, createOrder(d.Service))
	r.GET("/api/orders/history", d.Gate.RequireCustomer(), orderHistory(d.Service))
	r.POST("/api/orders/:token/cancel", d.Gate.RequireCustomer(), cancelOrder(d.Service))
	r.GET("/api/orders/:token", getOrder(d.Service))
	r.GET("/api/orders", d.Gate.RequireAdmin(), listOrders(d.Service))
	r.PATCH("/api/orders/:token/status", d.Gate.RequireAdmin(), updateStatus(d.Service))

	// Admin
	r.GET("/api/admin/customers", d.Gate.RequireAdmin(), listCustomers(d.Customers))

	// 实时状态订阅
	r.GET("/ws/:audience", d.Hub.Serve())
}

// listProducts 查询商品目录。
func listProducts(products *store.ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := products.ListProducts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// signup 注册账户：手机号归一化 + PIN 入库前 bcrypt 哈希。
func signup(customers *store.CustomerStore, gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name    string `json:"name" binding:"required,min=1,max=100"`
			Phone   string `json:"phone" binding:"required"`
			Email   string `json:"email" binding:"required,email"`
			Address string `json:"address" binding:"max=255"`
			Pin     string `json:"pin" binding:"required,len=4,numeric"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		phone, err := auth.NormalizePhone(req.Phone)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"code": 422, "msg": "手机号格式不正确"})
			return
		}
		pinHash, err := auth.HashPin(req.Pin)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		cust := &model.Customer{
			Phone:   phone,
			Name:    req.Name,
			Email:   req.Email,
			Address: req.Address,
			PinHash: pinHash,
		}
		if err := customers.Create(cust); err != nil {
			if errors.Is(err, store.ErrCustomerExists) {
				c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": "该手机号或邮箱已注册"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		token, err := gate.IssueCustomer(phone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"phone":        phone,
			"access_token": token,
		}})
	}
}

// login 手机号或邮箱 + PIN 登录。
func login(customers *store.CustomerStore, gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier" binding:"required"`
			Pin        string `json:"pin" binding:"required,len=4,numeric"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		identifier := req.Identifier
		if phone, err := auth.NormalizePhone(identifier); err == nil {
			identifier = phone
		}
		cust, err := customers.GetByIdentifier(identifier)
		if err != nil {
			if errors.Is(err, store.ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "账号不存在，请先注册"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !auth.VerifyPin(cust.PinHash, req.Pin) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "PIN 不正确"})
			return
		}
		token, err := gate.IssueCustomer(cust.Phone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"phone":        cust.Phone,
			"access_token": token,
		}})
	}
}

// adminLogin 管理员密码换管理令牌。
func adminLogin(gate *auth.Gate, adminPassword string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.Password != adminPassword {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "管理员密码不正确"})
			return
		}
		token, err := gate.IssueAdmin()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"access_token": token}})
	}
}

// forgotPin 签发一次性重置码。demo 级别：没有邮件通道，重置码直接回给调用方。
func forgotPin(customers *store.CustomerStore, rdb *rd.Client, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if _, err := customers.GetByEmail(req.Email); err != nil {
			if errors.Is(err, store.ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "该邮箱未注册"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		code, err := rediskey.NewResetCode(c.Request.Context(), rdb, req.Email, cfg.ResetCodeTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"reset_token": code}})
	}
}

// resetPin 用重置码设置新 PIN。重置码一次有效。
func resetPin(customers *store.CustomerStore, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ResetToken string `json:"reset_token" binding:"required"`
			NewPin     string `json:"new_pin" binding:"required,len=4,numeric"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		email, found, err := rediskey.ConsumeResetCode(c.Request.Context(), rdb, req.ResetToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "重置码无效或已过期"})
			return
		}
		cust, err := customers.GetByEmail(email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		pinHash, err := auth.HashPin(req.NewPin)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if _, err := customers.UpdatePinHash(cust.Phone, pinHash); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "PIN 已重置"})
	}
}

// createOrder 建单入口。价格与总价一律按服务端目录重算。
func createOrder(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.PrincipalFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "请先登录"})
			return
		}
		var req struct {
			Items        []lifecycle.CartLine `json:"items" binding:"required,min=1,dive"`
			Total        float64              `json:"total" binding:"required,gt=0"`
			DeliveryType string               `json:"delivery_type" binding:"omitempty,oneof=pickup delivery"`
			Address      string               `json:"address" binding:"max=255"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		order, err := svc.CreateOrder(c.Request.Context(), p.Phone, lifecycle.CreateInput{
			Items:        req.Items,
			Total:        req.Total,
			DeliveryType: req.DeliveryType,
			Address:      req.Address,
		})
		if err != nil {
			writeLifecycleError(c, err)
			return
		}

		data := gin.H{
			"token":         order.Token,
			"total":         order.Total,
			"status":        order.Status,
			"delivery_type": order.DeliveryType,
			"address":       order.Address,
		}
		// 送货单把交付 OTP 回给下单顾客：交付时由顾客口述、管理员录入核对。
		if order.DeliveryOTP != "" {
			data["delivery_otp"] = order.DeliveryOTP
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
	}
}

// cancelOrder 顾客取消自己的 Processing 订单。
func cancelOrder(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.PrincipalFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "请先登录"})
			return
		}
		order, count, err := svc.CancelOrder(c.Request.Context(), p.Phone, c.Param("token"))
		if err != nil {
			writeLifecycleError(c, err)
			return
		}
		msg := "订单已取消"
		if count > 0 {
			msg = fmt.Sprintf("订单已取消（近 1 小时第 %d 次，满 %d 次将暂停下单）", count, svc.CancelLimit())
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"token":   order.Token,
			"status":  order.Status,
			"message": msg,
		}})
	}
}

// orderHistory 顾客历史订单（新单在前）。
func orderHistory(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.PrincipalFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "请先登录"})
			return
		}
		list, err := svc.OrdersByPhone(p.Phone)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// getOrder 公开的订单状态查询（凭订单号轮询）。
func getOrder(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.GetOrder(c.Param("token"))
		if err != nil {
			writeLifecycleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}

// listOrders 管理端全量订单（带顾客姓名）。
func listOrders(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListOrders()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// updateStatus 管理员状态迁移：Ready for Pickup / Delivered（送货单需 OTP）。
func updateStatus(svc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Otp    string `json:"otp" binding:"omitempty,len=4,numeric"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		target := model.OrderStatus(req.Status)
		if target != model.StatusReady && target != model.StatusDelivered {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "status 只允许 Ready for Pickup 或 Delivered"})
			return
		}

		order, err := svc.UpdateStatus(c.Request.Context(), c.Param("token"), target, req.Otp)
		if err != nil {
			writeLifecycleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"token":  order.Token,
			"status": order.Status,
		}})
	}
}

// listCustomers 管理端账户列表。
func listCustomers(customers *store.CustomerStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := customers.ListAll()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}
