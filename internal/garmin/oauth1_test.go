package garmin

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

// Known-good HMAC-SHA1 vector from the OAuth 1.0a community documentation
// (the Twitter "status update" example).
func TestOAuthSignatureKnownVector(t *testing.T) {
	query := url.Values{"include_entities": {"true"}}
	form := url.Values{"status": {"Hello Ladies + Gentlemen, a signed OAuth request!"}}
	oauthParams := map[string]string{
		"oauth_consumer_key":     "xvz1evFS4wEEPTGEFPHBog",
		"oauth_nonce":            "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1318622958",
		"oauth_token":            "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		"oauth_version":          "1.0",
	}

	u, err := url.Parse("https://api.twitter.com/1/statuses/update.json?include_entities=true")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	pairs := collectParams(query, form, oauthParams)
	got := oauthSignature(http.MethodPost, baseURI(u), pairs,
		"kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		"LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE")

	want := "tnnArxj06cWHq44gCs1OSKk/jLY="
	if got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abcXYZ019", "abcXYZ019"},
		{"-._~", "-._~"},
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"ünïcode", "%C3%BCn%C3%AFcode"},
		{"a=b&c", "a%3Db%26c"},
	}
	for _, tt := range tests {
		if got := percentEncode(tt.in); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://connectapi.garmin.com/oauth-service/oauth/preauthorized?ticket=x", "https://connectapi.garmin.com/oauth-service/oauth/preauthorized"},
		{"HTTPS://Example.COM:443/path", "https://example.com/path"},
		{"http://example.com:80/path", "http://example.com/path"},
		{"http://127.0.0.1:8231/api", "http://127.0.0.1:8231/api"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.in, err)
		}
		if got := baseURI(u); got != tt.want {
			t.Errorf("baseURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignOAuth1SetsHeader(t *testing.T) {
	c := NewClient()
	c.nonce = func() string { return "fixednonce" }
	c.now = func() time.Time { return time.Unix(1318622958, 0) }

	req, err := http.NewRequest(http.MethodGet, "https://connectapi.garmin.com/oauth-service/oauth/preauthorized?ticket=ST-1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	c.signOAuth1(req, &OAuth1Token{Token: "tok", Secret: "sec"}, nil)

	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "OAuth ") {
		t.Fatalf("Authorization = %q, want OAuth prefix", auth)
	}
	for _, part := range []string{
		`oauth_consumer_key="` + defaultConsumerKey + `"`,
		`oauth_nonce="fixednonce"`,
		`oauth_signature_method="HMAC-SHA1"`,
		`oauth_timestamp="1318622958"`,
		`oauth_token="tok"`,
		`oauth_signature="`,
	} {
		if !strings.Contains(auth, part) {
			t.Errorf("Authorization missing %s: %q", part, auth)
		}
	}
}
