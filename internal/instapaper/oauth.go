package instapaper

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" // #nosec G505 -- OAuth 1.0a mandates HMAC-SHA1.
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer produces OAuth 1.0a HMAC-SHA1 Authorization headers.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	nonce          func() string
	now            func() time.Time
}

// NewSigner builds a Signer for the consumer credentials.
func NewSigner(key, secret string) *Signer {
	return &Signer{ConsumerKey: key, ConsumerSecret: secret, nonce: randomNonce, now: time.Now}
}

// Authorization returns the header value for a request to rawURL with the
// given form params, signed with the optional token pair.
func (s *Signer) Authorization(method, rawURL string, params map[string]string, token, tokenSecret string) string {
	oauth := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauth["oauth_token"] = token
	}
	oauth["oauth_signature"] = s.Signature(method, rawURL, params, oauth, tokenSecret)

	keys := sortedKeys(oauth)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+`="`+percentEncode(oauth[k])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// Signature computes the base64 HMAC-SHA1 over the signature base string.
func (s *Signer) Signature(method, rawURL string, params, oauth map[string]string, tokenSecret string) string {
	all := make(map[string]string, len(params)+len(oauth))
	for k, v := range params {
		all[k] = v
	}
	for k, v := range oauth {
		if k != "oauth_signature" {
			all[k] = v
		}
	}
	pairs := make([]string, 0, len(all))
	for _, k := range sortedKeys(all) {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(all[k]))
	}
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL(rawURL)) + "&" + percentEncode(strings.Join(pairs, "&"))
	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode applies RFC 3986 encoding as OAuth requires.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func baseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}
