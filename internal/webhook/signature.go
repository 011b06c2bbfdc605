package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix — схема подписи в заголовке X-Webhook-Signature.
const signaturePrefix = "sha256="

// Sign возвращает значение заголовка X-Webhook-Signature для тела запроса.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись входящего запроса за постоянное время.
func Verify(secret string, body []byte, signature string) bool {
	if secret == "" || !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
