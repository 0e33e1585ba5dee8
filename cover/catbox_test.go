package cover

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestCatbox(handler http.HandlerFunc) (*Catbox, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewCatbox()
	c.endpoint = srv.URL
	c.http = srv.Client()
	return c, srv
}

func TestCatbox_Upload(t *testing.T) {
	var gotReqType string
	var gotFile []byte

	c, srv := newTestCatbox(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotReqType = r.FormValue("reqtype")
		file, _, err := r.FormFile("fileToUpload")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFile, _ = io.ReadAll(file)
			_ = file.Close()
		}
		_, _ = io.WriteString(w, "https://files.catbox.moe/abc123.jpg\n")
	})
	defer srv.Close()

	url, err := c.Upload(context.Background(), "ignored", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://files.catbox.moe/abc123.jpg" {
		t.Errorf("url = %q", url)
	}
	if gotReqType != "fileupload" {
		t.Errorf("reqtype = %q", gotReqType)
	}
	if !bytes.Equal(gotFile, []byte("jpeg-bytes")) {
		t.Errorf("uploaded bytes = %q", gotFile)
	}
}

func TestCatbox_RejectsImplausibleResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not a url", "internal error"},
		{"wrong host", "https://evil.example/abc.jpg"},
		{"wrong scheme", "ftp://files.catbox.moe/abc.jpg"},
		{"oversized", "https://files.catbox.moe/" + strings.Repeat("a", 600)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, srv := newTestCatbox(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})
			defer srv.Close()
			if _, err := c.Upload(context.Background(), "", []byte("x")); err == nil {
				t.Errorf("expected validation error for body %q", tc.body)
			}
		})
	}
}

func TestCatbox_RejectsOversizedImage(t *testing.T) {
	c := NewCatbox()
	big := make([]byte, catboxMaxBytes+1)
	if _, err := c.Upload(context.Background(), "", big); err == nil {
		t.Fatal("expected size cap error")
	}
}

func TestCatbox_ErrorStatus(t *testing.T) {
	c, srv := newTestCatbox(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()
	if _, err := c.Upload(context.Background(), "", []byte("x")); err == nil {
		t.Fatal("expected status error")
	}
}
