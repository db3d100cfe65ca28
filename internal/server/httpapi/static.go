package httpapi

import (
	iofs "io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// spaHandler serves files from dir and falls back to index.html for any
// other GET so client-side routes resolve. It returns nil when dir is
// missing.
func spaHandler(dir string) http.HandlerFunc {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}

	root := os.DirFS(dir)
	files := http.FileServer(http.FS(root))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusNotFound, "not found")
			return
		}

		clean := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if clean != "" {
			if info, err := iofs.Stat(root, clean); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}

		index, err := iofs.ReadFile(root, "index.html")
		if err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	}
}
