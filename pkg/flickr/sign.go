package flickr

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Credentials is the capability token the client signs requests with. The
// OAuth authorization flow that produces it lives outside this tool.
type Credentials struct {
	APIKey           string
	APISecret        string
	OAuthToken       string
	OAuthTokenSecret string
}

// signRequest adds OAuth 1.0a parameters and an HMAC-SHA1 signature to the
// given query values for a GET request against endpoint.
func (c *Credentials) signRequest(endpoint string, params url.Values) {
	params.Set("oauth_consumer_key", c.APIKey)
	params.Set("oauth_token", c.OAuthToken)
	params.Set("oauth_signature_method", "HMAC-SHA1")
	params.Set("oauth_version", "1.0")
	params.Set("oauth_timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	params.Set("oauth_nonce", nonce())

	base := signatureBase("GET", endpoint, params)
	key := url.QueryEscape(c.APISecret) + "&" + url.QueryEscape(c.OAuthTokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	params.Set("oauth_signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// signatureBase builds the OAuth signature base string: method, endpoint and
// the percent-encoded parameters in byte order.
func signatureBase(method, endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params.Get(k)))
	}

	return strings.Join([]string{
		method,
		percentEncode(endpoint),
		percentEncode(strings.Join(pairs, "&")),
	}, "&")
}

// percentEncode applies RFC 3986 encoding, which differs from
// url.QueryEscape in its treatment of spaces and tildes.
func percentEncode(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	escaped = strings.ReplaceAll(escaped, "%7E", "~")
	return escaped
}

func nonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
