package auth

import "golang.org/x/crypto/bcrypt"

// HashPin 生成 PIN 的 bcrypt 哈希。
func HashPin(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPin 校验 PIN 是否与哈希匹配。
func VerifyPin(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
