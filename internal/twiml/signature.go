package twiml

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
)

// ComputeSignature returns the provider webhook signature for a request:
// HMAC-SHA1 over the full URL followed by the form parameters sorted by
// key, each appended as key then value, base64 encoded.
func ComputeSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL))
	for _, k := range keys {
		for _, v := range form[k] {
			mac.Write([]byte(k))
			mac.Write([]byte(v))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks a presented X-Twilio-Signature value in constant
// time against the expected signature for the request.
func ValidateSignature(authToken, fullURL string, form url.Values, presented string) bool {
	expected := ComputeSignature(authToken, fullURL, form)
	return hmac.Equal([]byte(expected), []byte(presented))
}
