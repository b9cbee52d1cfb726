package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DigestPrefix 摘要算法前缀
const DigestPrefix = "sha256:"

// Digest 计算带算法前缀的 SHA-256 摘要
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return DigestPrefix + hex.EncodeToString(sum[:])
}

// VerifyDigest 校验数据与摘要是否一致
func VerifyDigest(data []byte, digest string) bool {
	if !strings.HasPrefix(digest, DigestPrefix) {
		return false
	}
	return Digest(data) == digest
}
