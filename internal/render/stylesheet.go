package render

import (
	"embed"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

//go:embed styles/*.css
var styles embed.FS

// Stylesheet is the minified widget CSS shared by every document. It is
// compiled on first use.
var Stylesheet = sync.OnceValue(compileStylesheet)

func compileStylesheet() string {
	names, err := fs.Glob(styles, "styles/*.css")
	if err != nil {
		slog.Error("widget stylesheet glob failed", "error", err)
		return ""
	}
	var src strings.Builder
	// base.css sorts first and carries the rules everything else refines.
	for _, name := range names {
		b, err := styles.ReadFile(name)
		if err != nil {
			slog.Error("widget stylesheet read failed", "file", name, "error", err)
			continue
		}
		src.Write(b)
		src.WriteByte('\n')
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	out, err := m.String("text/css", src.String())
	if err != nil {
		slog.Warn("widget stylesheet minify failed, serving source", "error", err)
		return src.String()
	}
	return out
}
