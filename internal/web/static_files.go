package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var embeddedStaticFiles embed.FS

// pageRoutes are the client-side routes that all serve index.html.
var pageRoutes = map[string]bool{
	"/":        true,
	"/mission": true,
	"/chat":    true,
	"/gateway": true,
}

// uiBundle lists the assets the page needs to boot.
var uiBundle = []string{"index.html", "app.js", "styles.css"}

func uiAssets() (fs.FS, error) {
	return fs.Sub(embeddedStaticFiles, "static")
}

func (s *Server) staticFileServer() http.Handler {
	assets, err := uiAssets()
	if err != nil {
		s.logger.Error("embedded UI assets unreadable", "error", err)
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeAPIError(w, http.StatusInternalServerError, "ASSETS_UNAVAILABLE", "static assets unavailable")
		})
	}
	files := http.FileServerFS(assets)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method != http.MethodGet && r.Method != http.MethodHead:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	case !pageRoutes[r.URL.Path]:
		http.NotFound(w, r)
	default:
		page, err := embeddedStaticFiles.ReadFile("static/index.html")
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "ASSETS_UNAVAILABLE", "index unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(page)
	}
}

// AssetsPresent reports whether every file of the embedded UI bundle exists
// and is non-empty.
func AssetsPresent() error {
	assets, err := uiAssets()
	if err != nil {
		return fmt.Errorf("open UI assets: %w", err)
	}
	for _, name := range uiBundle {
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return fmt.Errorf("missing UI asset %s: %w", name, err)
		}
		if len(data) == 0 {
			return fmt.Errorf("UI asset %s is empty", name)
		}
	}
	return nil
}
