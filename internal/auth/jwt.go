package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Role 调用方身份类别。
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal 是从凭证里解析出来的调用方：顾客带手机号，管理员不带。
type Principal struct {
	Role  Role
	Phone string
}

// ErrUnauthorized 统一表示凭证缺失、过期或伪造。
var ErrUnauthorized = errors.New("unauthorized")

// Gate 负责签发与校验 Bearer JWT（HS256）。
type Gate struct {
	secret []byte
	ttl    time.Duration
}

func NewGate(secret string, ttl time.Duration) *Gate {
	return &Gate{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// IssueCustomer 为归一化后的手机号签发顾客令牌。
func (g *Gate) IssueCustomer(phone string) (string, error) {
	return g.issue(claims{Role: string(RoleCustomer), Phone: phone})
}

// IssueAdmin 签发管理员令牌。
func (g *Gate) IssueAdmin() (string, error) {
	return g.issue(claims{Role: string(RoleAdmin)})
}

func (g *Gate) issue(c claims) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(g.ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.secret)
}

// Identify 校验令牌并还原调用方身份。任何解析失败都归一为 ErrUnauthorized。
func (g *Gate) Identify(tokenStr string) (*Principal, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrUnauthorized
	}
	c, ok := tok.Claims.(*claims)
	if !ok {
		return nil, ErrUnauthorized
	}
	switch Role(c.Role) {
	case RoleAdmin:
		return &Principal{Role: RoleAdmin}, nil
	case RoleCustomer:
		if c.Phone == "" {
			return nil, ErrUnauthorized
		}
		return &Principal{Role: RoleCustomer, Phone: c.Phone}, nil
	default:
		return nil, ErrUnauthorized
	}
}
