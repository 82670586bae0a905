package httpclient

import (
	"testing"
	"time"
)

func TestBuildURL_AppendsQuery(t *testing.T) {
	got := buildURL("https://api.test/users", map[string]string{"limit": "10"})
	if got != "https://api.test/users?limit=10" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildURL_AppendsToExistingQuery(t *testing.T) {
	got := buildURL("https://api.test/users?active=true", map[string]string{"limit": "10"})
	if got != "https://api.test/users?active=true&limit=10" {
		t.Fatalf("got %q", got)
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://api.test/users":       "api.test",
		"http://localhost:8080/health":  "localhost:8080",
		"https://api.test?x=1":          "api.test",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Fatalf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEncodeBody_JSON(t *testing.T) {
	b, ct, err := encodeBody(map[string]interface{}{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if ct != "application/json" {
		t.Fatalf("got content type %q", ct)
	}
	if string(b) != `{"a":1}` {
		t.Fatalf("got %q", b)
	}
}

func TestEncodeBody_String(t *testing.T) {
	b, ct, err := encodeBody("raw text")
	if err != nil {
		t.Fatal(err)
	}
	if ct != "text/plain" || string(b) != "raw text" {
		t.Fatalf("got %q %q", b, ct)
	}
}

func TestLooksLikeJSON(t *testing.T) {
	if !looksLikeJSON("application/json; charset=utf-8", []byte(`{}`)) {
		t.Fatal("expected content-type match")
	}
	if !looksLikeJSON("", []byte(`  [1,2,3]`)) {
		t.Fatal("expected sniffed array body")
	}
	if looksLikeJSON("text/plain", []byte("hello")) {
		t.Fatal("expected plain text to not look like JSON")
	}
}

func TestResponse_Context(t *testing.T) {
	r := &Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"ok":true}`,
		BodyJSON:   map[string]interface{}{"ok": true},
		Duration:   150 * time.Millisecond,
		SizeBytes:  11,
	}
	ctx := r.Context()
	if ctx["status_code"] != 200 {
		t.Fatalf("got %v", ctx["status_code"])
	}
	if ctx["duration_ms"] != int64(150) {
		t.Fatalf("got %v", ctx["duration_ms"])
	}
	body, ok := ctx["body"].(map[string]interface{})
	if !ok || body["ok"] != true {
		t.Fatalf("expected parsed JSON body in context, got %v", ctx["body"])
	}
}
