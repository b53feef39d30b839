package publicid

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Alphabet 公开 ID 字符集：小写字母和数字
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var ErrInvalidLength = errors.New("public id length must be positive")

// New 用加密随机源生成指定长度的公开 ID
func New(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Valid 检查字符串是否只包含合法字符
func Valid(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
