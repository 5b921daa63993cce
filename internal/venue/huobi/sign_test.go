package huobi

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"
)

func TestSignature_CanonicalAndDeterministic(t *testing.T) {
	q := url.Values{}
	// Inserted out of order; Encode must sort keys lexicographically.
	q.Set("Timestamp", "2021-01-01T00:00:00")
	q.Set("AccessKeyId", "key")
	q.Set("SignatureVersion", "2")
	q.Set("SignatureMethod", "HmacSHA256")

	sig1 := Signature("GET", "api.huobi.pro", "/ws/v2", "secret", q)
	sig2 := Signature("GET", "api.huobi.pro", "/ws/v2", "secret", q)
	if sig1 != sig2 {
		t.Fatalf("signature must be deterministic: %s vs %s", sig1, sig2)
	}
	if sig1 == "" {
		t.Fatal("signature must not be empty")
	}

	if other := Signature("GET", "api.huobi.pro", "/ws/v2", "other-secret", q); other == sig1 {
		t.Fatal("different secrets must produce different signatures")
	}
}

func TestAuthFrame_Shape(t *testing.T) {
	now := time.Date(2021, 6, 1, 12, 30, 5, 0, time.UTC)
	raw := AuthFrame("ak", "sk", "api.huobi.pro", "/ws/v2", now)

	var frame map[string]string
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("auth frame must be valid JSON: %v", err)
	}

	want := map[string]string{
		"op":               "auth",
		"type":             "api",
		"AccessKeyId":      "ak",
		"SignatureMethod":  "HmacSHA256",
		"SignatureVersion": "2",
		"Timestamp":        "2021-06-01T12:30:05",
	}
	for k, v := range want {
		if frame[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, frame[k])
		}
	}
	if frame["Signature"] == "" {
		t.Error("auth frame must carry a signature")
	}
}
