package snapshot

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"
)

func TestRenderHTMLRejectsEmptyViewport(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{})
	defer r.Close()
	_, err := r.RenderHTML(context.Background(), "<html></html>", image.Point{})
	var rerr *RenderError
	if !errors.As(err, &rerr) || rerr.Op != "viewport" {
		t.Fatalf("expected viewport RenderError, got %v", err)
	}
}

func TestRenderHTMLMissingBrowserIsRenderError(t *testing.T) {
	r := NewChromeRenderer(ChromeOptions{ExecPath: "/nonexistent/izboard-chrome", Timeout: 5 * time.Second})
	defer r.Close()
	_, err := r.RenderHTML(context.Background(), "<html></html>", image.Pt(800, 480))
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
}

func TestRenderErrorUnwraps(t *testing.T) {
	base := errors.New("tab crashed")
	err := error(&RenderError{Op: "capture", Err: base})
	if !errors.Is(err, base) || err.Error() != "snapshot capture: tab crashed" {
		t.Fatalf("unexpected error %v", err)
	}
}
