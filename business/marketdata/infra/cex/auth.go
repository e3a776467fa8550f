package cex

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// AuthScheme signs an IOC order payload per one venue's auth convention.
// Returns the headers to attach to the request and the body to send.
// Distinct venues sign differently (HMAC-SHA256 over a querystring vs
// HMAC-SHA384 over a base64 JSON payload); AuthScheme is the pluggable
// boundary so the connector itself never hard-codes one venue's scheme.
type AuthScheme interface {
	Sign(payload map[string]string) (headers map[string]string, body []byte, err error)
}

// BinanceHMACScheme signs requests the way Binance's REST API expects:
// a timestamped, sorted querystring, HMAC-SHA256-signed, with the API key
// carried in a header rather than the signed payload.
type BinanceHMACScheme struct {
	APIKey    string
	APISecret string
}

// Sign implements AuthScheme.
func (s BinanceHMACScheme) Sign(payload map[string]string) (map[string]string, []byte, error) {
	payload["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, payload[k]))
	}
	query := strings.Join(parts, "&")

	mac := hmac.New(sha256.New, []byte(s.APISecret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	body := []byte(query + "&signature=" + signature)
	headers := map[string]string{
		"X-MBX-APIKEY": s.APIKey,
		"Content-Type": "application/x-www-form-urlencoded",
	}
	return headers, body, nil
}

// GeminiHMACScheme signs requests the way Gemini's REST API expects: the
// whole JSON payload (plus a monotonic millisecond nonce) is base64-encoded
// and HMAC-SHA384-signed; the base64 payload and signature both travel as
// headers, not in the request body.
type GeminiHMACScheme struct {
	APIKey    string
	APISecret string
}

// lastGeminiNonce is the last nonce GeminiHMACScheme issued; each new nonce
// is the current millisecond or one more than this, whichever is larger.
var lastGeminiNonce atomic.Int64

// Sign implements AuthScheme.
func (s GeminiHMACScheme) Sign(payload map[string]string) (map[string]string, []byte, error) {
	var n int64
	for {
		last := lastGeminiNonce.Load()
		n = max(time.Now().UnixMilli(), last+1)
		if lastGeminiNonce.CompareAndSwap(last, n) {
			break
		}
	}
	nonce := strconv.FormatInt(n, 10)

	generic := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		generic[k] = v
	}
	generic["nonce"] = nonce

	payloadJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, nil, err
	}
	payloadB64 := base64.StdEncoding.EncodeToString(payloadJSON)

	mac := hmac.New(sha512.New384, []byte(s.APISecret))
	mac.Write([]byte(payloadB64))
	signature := hex.EncodeToString(mac.Sum(nil))

	headers := map[string]string{
		"Content-Type":        "text/plain",
		"X-GEMINI-APIKEY":     s.APIKey,
		"X-GEMINI-PAYLOAD":    payloadB64,
		"X-GEMINI-SIGNATURE":  signature,
	}
	return headers, nil, nil
}
