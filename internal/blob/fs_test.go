package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPutAndServe(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "/uploads/")
	if err != nil {
		t.Fatal(err)
	}
	url, err := fs.Put(context.Background(), "foodDonations/u1/1_a.png", strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "/uploads/foodDonations/u1/1_a.png" {
		t.Fatalf("url = %s", url)
	}

	srv := httptest.NewServer(http.StripPrefix("/uploads", fs.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + url)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "png-bytes" {
		t.Fatalf("status %d body %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/uploads/foodDonations/u1/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("directory listing served: %d", resp.StatusCode)
	}
}

func TestPutRejectsEscapingKeys(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "/abs", "../x", "a/../../x", `a\b`, "a//b", "."} {
		if _, err := fs.Put(context.Background(), key, strings.NewReader("x"), ""); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestPutEnforcesMaxSize(t *testing.T) {
	fs, err := NewFS(t.TempDir(), "/uploads", WithMaxSize(4))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Put(context.Background(), "big.bin", strings.NewReader("12345"), ""); err == nil {
		t.Fatal("expected size error")
	}
	if _, err := fs.Open("big.bin"); err == nil {
		t.Fatal("oversized object should not be committed")
	}
	if _, err := fs.Put(context.Background(), "ok.bin", strings.NewReader("1234"), ""); err != nil {
		t.Fatalf("put at limit: %v", err)
	}
}
