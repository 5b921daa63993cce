// Package huobi implements the venue-specific framing for Huobi
// websocket market data on top of the generic stream client: signed
// authentication, payload inflation, heartbeat answering, and channel
// subscription views.
package huobi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"time"
)

const (
	signatureMethod  = "HmacSHA256"
	signatureVersion = "2"
	timestampLayout  = "2006-01-02T15:04:05"
)

// Signature computes the venue's v2 request signature: the canonical
// query string (keys sorted lexicographically) concatenated with the
// HTTP method, host and path, HMAC-SHA256 signed and base64 encoded.
func Signature(method, host, path, secret string, params url.Values) string {
	payload := method + "\n" + host + "\n" + path + "\n" + params.Encode()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type authFrame struct {
	Op               string `json:"op"`
	Type             string `json:"type"`
	AccessKeyID      string `json:"AccessKeyId"`
	SignatureMethod  string `json:"SignatureMethod"`
	SignatureVersion string `json:"SignatureVersion"`
	Timestamp        string `json:"Timestamp"`
	Signature        string `json:"Signature"`
}

// AuthFrame builds the signed auth frame sent immediately on connection
// open, before any subscription frames. It is rebuilt (fresh timestamp)
// on every reconnect.
func AuthFrame(accessKey, secret, host, path string, now time.Time) []byte {
	ts := now.UTC().Format(timestampLayout)

	q := url.Values{}
	q.Set("AccessKeyId", accessKey)
	q.Set("SignatureMethod", signatureMethod)
	q.Set("SignatureVersion", signatureVersion)
	q.Set("Timestamp", ts)

	frame := authFrame{
		Op:               "auth",
		Type:             "api",
		AccessKeyID:      accessKey,
		SignatureMethod:  signatureMethod,
		SignatureVersion: signatureVersion,
		Timestamp:        ts,
		Signature:        Signature("GET", host, path, secret, q),
	}
	out, _ := json.Marshal(frame)
	return out
}
