package instapaper

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignatureMatchesReferenceVector(t *testing.T) {
	signer := NewSigner("dpf43f3p2l4k3l03", "kd94hf93k423kf44")
	oauth := map[string]string{
		"oauth_consumer_key":     "dpf43f3p2l4k3l03",
		"oauth_token":            "nnch734d00sl2jdk",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1191242096",
		"oauth_nonce":            "kllo9940pd9333jh",
		"oauth_version":          "1.0",
	}
	params := map[string]string{"file": "vacation.jpg", "size": "original"}

	got := signer.Signature("GET", "http://photos.example.net/photos", params, oauth, "pfkkdhi9sl3r4s00")
	assert.Equal(t, "tR3+Ty81lMeYAr/Fid0kMTYa/WM=", got)
}

func TestAuthorizationHeader(t *testing.T) {
	signer := NewSigner("key", "secret")
	signer.nonce = func() string { return "abc" }
	signer.now = func() time.Time { return time.Unix(1700000000, 0) }

	header := signer.Authorization("POST", "https://www.instapaper.com/api/1/bookmarks/list",
		map[string]string{"limit": "500"}, "tok", "toksecret")

	assert.True(t, strings.HasPrefix(header, "OAuth "))
	assert.Contains(t, header, `oauth_consumer_key="key"`)
	assert.Contains(t, header, `oauth_nonce="abc"`)
	assert.Contains(t, header, `oauth_timestamp="1700000000"`)
	assert.Contains(t, header, `oauth_token="tok"`)
	assert.Contains(t, header, `oauth_signature="`)
	assert.NotContains(t, header, "limit")

	unauthenticated := signer.Authorization("POST", "https://www.instapaper.com/api/1/oauth/access_token", nil, "", "")
	assert.NotContains(t, unauthenticated, "oauth_token=")
}

func TestPercentEncode(t *testing.T) {
	assert.Equal(t, "a%20b", percentEncode("a b"))
	assert.Equal(t, "-._~", percentEncode("-._~"))
	assert.Equal(t, "%2A%2B%26", percentEncode("*+&"))
}
