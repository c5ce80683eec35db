package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign 计算支付签名：hex(HMAC-SHA256(secret, orderID + "|" + paymentID))
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify 重新计算签名并做常量时间比较，不匹配返回 false
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	expected := Sign(v.secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
