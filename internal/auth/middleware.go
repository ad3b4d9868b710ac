package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalCtxKey = "auth.principal"

// RequireCustomer 要求 Bearer 令牌且角色为 customer，身份放入请求上下文。
func (g *Gate) RequireCustomer() gin.HandlerFunc {
	return g.require(RoleCustomer)
}

// RequireAdmin 要求 Bearer 令牌且角色为 admin。
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return g.require(RoleAdmin)
}

func (g *Gate) require(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.Identify(bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "请先登录"})
			return
		}
		if p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": 403, "msg": "无权访问"})
			return
		}
		c.Set(principalCtxKey, p)
		c.Next()
	}
}

// PrincipalFrom 取出中间件放入的调用方身份。
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalCtxKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
