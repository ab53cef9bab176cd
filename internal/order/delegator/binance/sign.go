package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// sign returns the encoded params with the HMAC-SHA256 signature of that exact string appended.
func sign(secret string, params url.Values) string {
	payload := params.Encode()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	if len(payload) == 0 {
		return "signature=" + signature
	}
	return payload + "&signature=" + signature
}
