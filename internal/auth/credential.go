package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier 校验明文与存储的哈希（交易 PIN、登录密码）
type CredentialVerifier interface {
	Verify(plain, hash string) bool
}

// BcryptVerifier bcrypt 实现
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(plain, hash string) bool {
	return CheckPassword(hash, plain)
}

func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}
