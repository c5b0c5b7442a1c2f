package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodHead && strings.TrimSuffix(r.URL.Path, "/") == "/feeds-bucket":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = body
		b.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestFeedPublisherPublish(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	p, err := NewFeedPublisher(Config{
		Endpoint:       srv.URL,
		PublicEndpoint: "https://cdn.example.com/",
		AccessKey:      "key",
		SecretKey:      "secret",
		Bucket:         "feeds-bucket",
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	url, err := p.Publish(context.Background(), "lst-1", []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://cdn.example.com/feeds-bucket/feeds/lst-1.ics" {
		t.Fatalf("url = %s", url)
	}
	// Plain HTTP uploads may arrive aws-chunked, so only look for the payload.
	if got := string(bucket.objects["/feeds-bucket/feeds/lst-1.ics"]); !strings.Contains(got, "BEGIN:VCALENDAR\r\nEND:VCALENDAR") {
		t.Fatalf("stored %q", got)
	}
	if bucket.types["/feeds-bucket/feeds/lst-1.ics"] != feedContentType {
		t.Fatalf("content type = %q", bucket.types["/feeds-bucket/feeds/lst-1.ics"])
	}
}

func TestFeedKey(t *testing.T) {
	cases := map[string]bool{
		"lst-1":     true,
		"":          false,
		"../etc":    false,
		"a\\b":      false,
		"  lst-2  ": true,
	}
	for in, ok := range cases {
		_, err := feedKey(in)
		if (err == nil) != ok {
			t.Errorf("feedKey(%q) err = %v", in, err)
		}
	}
}

func TestNewFeedPublisherRequiresBucket(t *testing.T) {
	if _, err := NewFeedPublisher(Config{Endpoint: "localhost:9000"}, nil); err == nil {
		t.Fatal("expected error without bucket")
	}
}
