// Package signer produces the HMAC-SHA256 request signatures merchants
// attach to API calls. The server validates with the same Sign function.
package signer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// Sign returns lowercase hex HMAC-SHA256(secret, timestamp || body).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Timestamp formats t as Unix seconds, the wire form of X-Timestamp.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// Headers returns the three auth headers for body signed at t.
func Headers(apiKey, secret string, t time.Time, body []byte) http.Header {
	ts := Timestamp(t)
	h := make(http.Header, 3)
	h.Set(HeaderAPIKey, apiKey)
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, Sign(secret, ts, body))
	return h
}

// SignRequest signs req in place. The body is read in full and restored.
func SignRequest(req *http.Request, apiKey, secret string, t time.Time) error {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		_ = req.Body.Close()
		body = b
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	for k, v := range Headers(apiKey, secret, t, body) {
		req.Header[k] = v
	}
	return nil
}
