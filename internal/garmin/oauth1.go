package garmin

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// OAuth1Token is the long-lived token pair from the SSO ticket exchange.
// Garmin keeps it valid for about a year; the short-lived OAuth2 bearer is
// re-derived from it on demand.
type OAuth1Token struct {
	Token    string `json:"oauth_token"`
	Secret   string `json:"oauth_token_secret"`
	MFAToken string `json:"mfa_token,omitempty"`
}

// signOAuth1 adds an OAuth 1.0a HMAC-SHA1 Authorization header to req.
// token may be nil (two-legged request, e.g. the ticket preauthorization).
// form lists x-www-form-urlencoded body parameters, which participate in
// the signature per RFC 5849 §3.4.1.3.
func (c *Client) signOAuth1(req *http.Request, token *OAuth1Token, form url.Values) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     c.consumerKey,
		"oauth_nonce":            c.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	tokenSecret := ""
	if token != nil {
		oauthParams["oauth_token"] = token.Token
		tokenSecret = token.Secret
	}

	pairs := collectParams(req.URL.Query(), form, oauthParams)
	oauthParams["oauth_signature"] = oauthSignature(
		req.Method, baseURI(req.URL), pairs, c.consumerSecret, tokenSecret)

	req.Header.Set("Authorization", authorizationHeader(oauthParams))
}

// collectParams gathers query, form, and oauth parameters as
// percent-encoded key/value pairs for signature-base construction.
func collectParams(query, form url.Values, oauthParams map[string]string) [][2]string {
	var pairs [][2]string
	add := func(k, v string) {
		pairs = append(pairs, [2]string{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range query {
		for _, v := range vs {
			add(k, v)
		}
	}
	for k, vs := range form {
		for _, v := range vs {
			add(k, v)
		}
	}
	for k, v := range oauthParams {
		add(k, v)
	}
	return pairs
}

// oauthSignature computes the base64 HMAC-SHA1 signature over the
// normalized request per RFC 5849 §3.4.
func oauthSignature(method, base string, pairs [][2]string, consumerSecret, tokenSecret string) string {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + "=" + p[1]
	}

	baseString := strings.ToUpper(method) +
		"&" + percentEncode(base) +
		"&" + percentEncode(strings.Join(parts, "&"))

	key := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseURI normalizes the request URL for signing: lowercase scheme and
// host, default ports dropped, query and fragment excluded.
func baseURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath()
}

func authorizationHeader(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = percentEncode(k) + `="` + percentEncode(oauthParams[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// percentEncode encodes per RFC 3986 §2.1: everything but unreserved
// characters. Stricter than url.QueryEscape, which the signature spec
// does not accept (it encodes space as '+').
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == '-' || ch == '.' || ch == '_' || ch == '~':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
