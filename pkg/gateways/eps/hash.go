package eps

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
)

// GenerateHash produces the x-hash header value: base64 of HMAC-SHA512 over
// the data with the merchant hash key.
func GenerateHash(data, hashKey string) string {
	mac := hmac.New(sha512.New, []byte(hashKey))
	mac.Write([]byte(data))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
