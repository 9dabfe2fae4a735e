package downloader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	stderrors "errors"

	"quiltsync/pkg/errors"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/retry"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

type mockSource struct {
	mu       sync.Mutex
	calls    map[string]int
	inflight int32
	maxSeen  int32
	delay    time.Duration
	respond  func(url string) ([]byte, string, error)
}

func (m *mockSource) DownloadImage(ctx context.Context, url string) ([]byte, string, error) {
	cur := atomic.AddInt32(&m.inflight, 1)
	defer atomic.AddInt32(&m.inflight, -1)
	for {
		max := atomic.LoadInt32(&m.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&m.maxSeen, max, cur) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[url]++
	m.mu.Unlock()

	return m.respond(url)
}

func (m *mockSource) callCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

type mockStorage struct {
	mu       sync.Mutex
	existing map[string]bool
	saved    map[string][]byte
	saveErr  error
}

func (m *mockStorage) key(itemID, url string) string { return itemID + "|" + url }

func (m *mockStorage) IsDownloaded(itemID, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[m.key(itemID, url)]
}

func (m *mockStorage) ImagePath(itemID, url string) string {
	return "/images/" + m.key(itemID, url)
}

func (m *mockStorage) SaveImage(data []byte, itemID, url string) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[m.key(itemID, url)] = data
	return m.ImagePath(itemID, url), nil
}

func TestFetchItemPartialSuccess(t *testing.T) {
	img := pngBytes(t)
	source := &mockSource{
		respond: func(url string) ([]byte, string, error) {
			if strings.Contains(url, "broken") {
				return nil, "", errors.New(errors.ErrorTypeNotFound, "resource not found")
			}
			return img, "image/png", nil
		},
	}
	storage := &mockStorage{}

	f := NewFetcher(source, storage, nil, 2, 1, logger.NewTestLogger())
	urls := []string{
		"https://tile.loc.gov/a.png",
		"https://tile.loc.gov/broken.png",
		"https://tile.loc.gov/b.png",
	}

	results := f.FetchItem(context.Background(), "afc2019048_0001", urls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	downloaded, skipped, failed := Summarize(results)
	if downloaded != 2 || skipped != 0 || failed != 1 {
		t.Errorf("summary = %d/%d/%d, want 2/0/1", downloaded, skipped, failed)
	}
	// Results keep input order
	if results[1].Err == nil || results[1].URL != urls[1] {
		t.Errorf("expected failure at index 1, got %+v", results[1])
	}
	if paths := LocalPaths(results); len(paths) != 2 {
		t.Errorf("expected 2 local paths, got %v", paths)
	}
}

func TestFetchItemConcurrencyBound(t *testing.T) {
	img := pngBytes(t)
	source := &mockSource{
		delay: 20 * time.Millisecond,
		respond: func(url string) ([]byte, string, error) {
			return img, "image/png", nil
		},
	}
	storage := &mockStorage{}

	f := NewFetcher(source, storage, nil, 2, 1, logger.NewTestLogger())

	var urls []string
	for i := 0; i < 8; i++ {
		urls = append(urls, fmt.Sprintf("https://tile.loc.gov/img%d.png", i))
	}

	results := f.FetchItem(context.Background(), "afc2019048_0001", urls)

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected failure: %v", r.Err)
		}
	}
	if max := atomic.LoadInt32(&source.maxSeen); max > 2 {
		t.Errorf("concurrency bound exceeded: saw %d simultaneous downloads", max)
	}
}

func TestFetchItemSkipsExisting(t *testing.T) {
	source := &mockSource{
		respond: func(url string) ([]byte, string, error) {
			t.Error("download should not be called for existing images")
			return nil, "", nil
		},
	}
	storage := &mockStorage{
		existing: map[string]bool{"afc2019048_0001|https://tile.loc.gov/a.png": true},
	}

	f := NewFetcher(source, storage, nil, 1, 3, logger.NewTestLogger())
	results := f.FetchItem(context.Background(), "afc2019048_0001", []string{"https://tile.loc.gov/a.png"})

	if !results[0].Skipped || results[0].Err != nil {
		t.Errorf("expected skip, got %+v", results[0])
	}
	if results[0].LocalPath == "" {
		t.Error("skipped result must still carry the local path")
	}
}

func TestFetchItemInvalidImageNotRetried(t *testing.T) {
	source := &mockSource{
		respond: func(url string) ([]byte, string, error) {
			return []byte("<html>503 Service Unavailable</html>"), "image/jpeg", nil
		},
	}
	storage := &mockStorage{}

	f := NewFetcher(source, storage, nil, 1, 5, logger.NewTestLogger())
	results := f.FetchItem(context.Background(), "afc2019048_0001", []string{"https://tile.loc.gov/a.jpg"})

	if results[0].Err == nil {
		t.Fatal("expected a validation failure")
	}
	var apiErr *errors.Error
	if !stderrors.As(results[0].Err, &apiErr) || apiErr.Type != errors.ErrorTypeImageInvalid {
		t.Errorf("expected image_invalid, got %v", results[0].Err)
	}
	if n := source.callCount("https://tile.loc.gov/a.jpg"); n != 1 {
		t.Errorf("invalid image retried %d times, want 1 attempt", n)
	}
	if len(storage.saved) != 0 {
		t.Error("invalid image must not be saved")
	}
}

func TestFetchItemSaveFailureIsNotFatal(t *testing.T) {
	data := pngBytes(t)
	source := &mockSource{
		respond: func(url string) ([]byte, string, error) {
			return data, "image/png", nil
		},
	}
	storage := &mockStorage{saveErr: stderrors.New("disk full")}

	f := NewFetcher(source, storage, nil, 1, 1, logger.NewTestLogger())
	results := f.FetchItem(context.Background(), "afc2019048_0001", []string{"https://tile.loc.gov/a.png"})

	if results[0].Err == nil {
		t.Fatal("expected a save failure")
	}
	var apiErr *errors.Error
	if !stderrors.As(results[0].Err, &apiErr) {
		t.Fatalf("expected a typed error, got %v", results[0].Err)
	}
	if apiErr.Type != errors.ErrorTypeFilesystem {
		t.Errorf("expected filesystem, got %q", apiErr.Type)
	}
	if errors.IsFatal(apiErr.Type) {
		t.Error("a local write failure must stay contained to the URL")
	}
}

func TestFetchItemRetriesNetworkErrors(t *testing.T) {
	img := pngBytes(t)
	var attempts int32
	source := &mockSource{
		respond: func(url string) ([]byte, string, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, "", errors.New(errors.ErrorTypeNetwork, "connection reset")
			}
			return img, "image/png", nil
		},
	}
	storage := &mockStorage{}

	f := NewFetcher(source, storage, nil, 1, 5, logger.NewTestLogger()).
		WithBackoff(&retry.ConstantBackoff{Delay: time.Millisecond})
	results := f.FetchItem(context.Background(), "afc2019048_0001", []string{"https://tile.loc.gov/a.png"})

	if results[0].Err != nil {
		t.Fatalf("expected success after retries, got %v", results[0].Err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestValidate(t *testing.T) {
	img := pngBytes(t)

	tests := []struct {
		name        string
		data        []byte
		url         string
		contentType string
		wantErr     bool
	}{
		{"valid png", img, "https://tile.loc.gov/a.png", "image/png", false},
		{"valid with empty content type", img, "https://tile.loc.gov/a.png", "", false},
		{"empty body", nil, "https://tile.loc.gov/a.png", "image/png", true},
		{"html error page", []byte("  <html>error</html>"), "https://tile.loc.gov/a.jpg", "image/jpeg", true},
		{"wrong content type", img, "https://tile.loc.gov/a.png", "text/html", true},
		{"garbage jpeg", []byte("not an image at all"), "https://tile.loc.gov/a.jpg", "image/jpeg", true},
		{"jp2 passes weak check", []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50}, "https://tile.loc.gov/a.jp2", "image/jp2", false},
		{"iiif url with query", img, "https://tile.loc.gov/iiif/x/full/pct:100/0/default.png?v=1", "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.data, tt.url, tt.contentType)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
