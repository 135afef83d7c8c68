package infra

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
)

func TestSanitizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AAPL", "AAPL"},
		{"BINANCE:BTCUSDT", "BINANCEBTCUSDT"},
		{"../../etc/passwd", "etcpasswd"},
		{"OANDA:XAU_USD", "OANDAXAUUSD"},
		{"::", ""},
	}
	for _, tt := range tests {
		if got := sanitizeSymbol(tt.in); got != tt.want {
			t.Errorf("sanitizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogoDownloader_Download(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		img := image.NewRGBA(image.Rect(0, 0, 128, 128))
		for x := 0; x < 128; x++ {
			img.Set(x, x, color.RGBA{R: 255, A: 255})
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, img)
	}))
	defer server.Close()

	dir := t.TempDir()
	d, err := NewLogoDownloader(dir, 0)
	if err != nil {
		t.Fatalf("NewLogoDownloader failed: %v", err)
	}

	path, err := d.Download(context.Background(), "AAPL", server.URL+"/aapl.png")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if path != filepath.Join(dir, "aapl.png") {
		t.Errorf("path = %q", path)
	}

	saved, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("saved logo unreadable: %v", err)
	}
	if b := saved.Bounds(); b.Dx() != DefaultLogoSize || b.Dy() != DefaultLogoSize {
		t.Errorf("saved size = %dx%d, want %d", b.Dx(), b.Dy(), DefaultLogoSize)
	}

	// Second call is a cache hit
	if _, err := d.Download(context.Background(), "AAPL", server.URL+"/aapl.png"); err != nil {
		t.Fatalf("cached Download failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestLogoDownloader_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("not an image"))
	}))
	defer server.Close()

	d, _ := NewLogoDownloader(t.TempDir(), 32)
	ctx := context.Background()

	tests := []struct {
		name   string
		symbol string
		url    string
	}{
		{"invalid symbol", "::", server.URL + "/x.png"},
		{"no url", "TSLA", ""},
		{"bad status", "NVDA", server.URL + "/missing.png"},
		{"undecodable", "AMZN", server.URL + "/garbage.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Download(ctx, tt.symbol, tt.url); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
