package imaging

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGenerator struct {
	data  []byte
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string) ([]byte, error) {
	g.calls++
	return g.data, g.err
}

type fakeUploader struct {
	url      string
	err      error
	calls    int
	gotData  []byte
	gotTitle string
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, title string) (string, error) {
	u.calls++
	u.gotData = data
	u.gotTitle = title
	return u.url, u.err
}

func TestPipeline_GenerateAndUpload(t *testing.T) {
	gen := &fakeGenerator{data: []byte("png-bytes")}
	up := &fakeUploader{url: "https://freeimage.host/i/xyz.png"}

	p := NewPipeline(gen, up, false, nil)

	url, err := p.GenerateAndUpload(context.Background(), "a cat on a roof", "Коты и крыши")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://freeimage.host/i/xyz.png" {
		t.Errorf("unexpected url %q", url)
	}
	if gen.calls != 1 || up.calls != 1 {
		t.Errorf("expected one generate and one upload, got %d/%d", gen.calls, up.calls)
	}
	if string(up.gotData) != "png-bytes" {
		t.Errorf("uploader received wrong data %q", up.gotData)
	}
	if up.gotTitle != "Коты и крыши" {
		t.Errorf("uploader received wrong title %q", up.gotTitle)
	}
}

func TestPipeline_TestMode(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("must not be called")}
	up := &fakeUploader{err: errors.New("must not be called")}

	p := NewPipeline(gen, up, true, nil)

	url, err := p.GenerateAndUpload(context.Background(), "brief", "Title")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != TestModeURL {
		t.Errorf("expected placeholder URL, got %q", url)
	}
	if gen.calls != 0 || up.calls != 0 {
		t.Errorf("test mode must not touch external services, got %d/%d calls", gen.calls, up.calls)
	}
}

func TestPipeline_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	up := &fakeUploader{}

	p := NewPipeline(gen, up, false, nil)

	_, err := p.GenerateAndUpload(context.Background(), "brief", "Title")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected generator error, got %v", err)
	}
	if up.calls != 0 {
		t.Errorf("upload must not run after generation failure")
	}
}

func TestPipeline_UploadError(t *testing.T) {
	gen := &fakeGenerator{data: []byte("png")}
	up := &fakeUploader{err: errors.New("host down")}

	p := NewPipeline(gen, up, false, nil)

	_, err := p.GenerateAndUpload(context.Background(), "brief", "Title")
	if !errors.Is(err, ErrImage) {
		t.Fatalf("expected ErrImage, got %v", err)
	}
}
