package auth

import (
	"errors"
	"regexp"
	"strings"
)

var phoneRe = regexp.MustCompile(`^[6-9]\d{9}$`)

// ErrInvalidPhone 表示手机号不是合法的 10 位印度号码。
var ErrInvalidPhone = errors.New("invalid 10-digit phone number")

// NormalizePhone 去掉空格、横线与 +91 国别前缀，返回 10 位手机号。
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(raw)
	if strings.HasPrefix(cleaned, "91") && len(cleaned) == 12 {
		cleaned = cleaned[2:]
	}
	if !phoneRe.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}
