package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestDo_JSONBodyAndAuth(t *testing.T) {
	var gotBody, gotCT, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Put(context.Background(), srv.URL, Options{
		Body:        map[string]any{"on": true},
		ContentType: JSON,
		AuthToken:   "abc",
	}, &out)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q", gotMethod)
	}
	if gotBody != `{"on":true}` {
		t.Errorf("body = %q", gotBody)
	}
	if gotCT != "application/json" {
		t.Errorf("content-type = %q", gotCT)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if !out.OK {
		t.Error("response was not decoded")
	}
}

func TestDo_FormBody(t *testing.T) {
	var form url.Values
	var gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		r.ParseForm()
		form = r.PostForm
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(time.Second)
	err := c.Post(context.Background(), srv.URL, Options{
		Body:        map[string]string{"grant_type": "refresh_token", "refresh_token": "r1"},
		ContentType: Form,
	}, nil)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("content-type = %q", gotCT)
	}
	if form.Get("refresh_token") != "r1" {
		t.Errorf("form = %v", form)
	}
}

func TestDo_NoBodyNoContentType(t *testing.T) {
	var gotCT string
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		gotLen = r.ContentLength
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out := map[string]any{"untouched": true}
	if err := New(time.Second).Put(context.Background(), srv.URL, Options{ContentType: JSON}, &out); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if gotCT != "" || gotLen != 0 {
		t.Errorf("bodiless request sent content-type %q length %d", gotCT, gotLen)
	}
	if out["untouched"] != true {
		t.Error("204 response must not touch out")
	}
}

func TestDo_Rejection(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"spotify_nested", 401, `{"error":{"status":401,"message":"The access token expired"}}`, "The access token expired"},
		{"flat_message", 404, `{"message":"not here"}`, "not here"},
		{"oauth", 400, `{"error":"invalid_grant","error_description":"Invalid refresh token"}`, "Invalid refresh token"},
		{"plain_text", 502, `bad gateway`, "bad gateway"},
		{"empty", 503, ``, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(time.Second).Get(context.Background(), srv.URL, Options{}, nil)
			rej, ok := IsRejection(err)
			if !ok {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rej.Status != tt.status {
				t.Errorf("status = %d, want %d", rej.Status, tt.status)
			}
			if rej.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", rej.Message, tt.wantMsg)
			}
			if IsTransient(err) {
				t.Error("rejection must not be transient")
			}
		})
	}
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	err := New(time.Second).Get(context.Background(), addr, Options{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("expected transport failure, got %T %v", err, err)
	}
	if _, ok := IsRejection(err); ok {
		t.Error("transport failure must not be a rejection")
	}
}

func TestDo_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"broken"`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New(time.Second).Get(context.Background(), srv.URL, Options{}, &out)
	if _, ok := err.(*MalformedError); !ok {
		t.Fatalf("expected MalformedError, got %T %v", err, err)
	}
	if !IsTransient(err) {
		t.Error("malformed payload should be transient")
	}
}

func TestEncodeBody_UnsupportedForm(t *testing.T) {
	if _, err := encodeBody(42, Form); err == nil {
		t.Error("expected error for non-map form body")
	}
	data, err := encodeBody(42, Raw)
	if err != nil || string(data) != "42" {
		t.Errorf("raw body = %q, %v", data, err)
	}
}
