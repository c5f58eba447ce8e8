package mdoc

import "encoding/base64"

// vp_token values are carried base64url encoded without padding.
var b64 = base64.URLEncoding.WithPadding(base64.NoPadding)

func EncodeBase64URL(data []byte) string {
	return b64.EncodeToString(data)
}

func DecodeBase64URL(s string) ([]byte, error) {
	return b64.DecodeString(s)
}
