package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"grain_store/internal/lifecycle"
	"grain_store/internal/store"
	"grain_store/internal/throttle"
	rediskey "grain_store/pkg/redis"
)

// writeLifecycleError 把状态机错误映射到 HTTP 语义：
// 校验类 400、越权 403、不存在 404、冲突类 409、节流 429、存储故障 500。
func writeLifecycleError(c *gin.Context, err error) {
	var blocked *throttle.BlockedError
	var notFoundProduct *lifecycle.ProductNotFoundError
	var badQuantity *lifecycle.InvalidQuantityError
	var badTransition *lifecycle.InvalidTransitionError

	switch {
	case errors.As(err, &blocked):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code": 429,
			"msg":  fmt.Sprintf("近 1 小时已取消 %d 单，暂时无法下单，请稍后再试", blocked.Count),
		})
	case errors.As(err, &notFoundProduct),
		errors.As(err, &badQuantity),
		errors.Is(err, lifecycle.ErrEmptyCart),
		errors.Is(err, lifecycle.ErrAddressRequired),
		errors.Is(err, lifecycle.ErrTotalMismatch),
		errors.Is(err, lifecycle.ErrOtpRequired):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
	case errors.Is(err, lifecycle.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"code": 403, "msg": "只能操作自己的订单"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "订单不存在"})
	case errors.As(err, &badTransition),
		errors.Is(err, lifecycle.ErrOtpMismatch):
		c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": err.Error()})
	case errors.Is(err, rediskey.ErrStorageUnavailable):
		// 不自动重试，当次请求直接失败。
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "服务暂不可用，请稍后再试"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
	}
}
