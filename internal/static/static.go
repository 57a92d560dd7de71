// Package static serves the public site root: the marketing pages and the
// local PDFs that records in local_pdf mode point at.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
)

// FileSystem returns an http.FileSystem rooted at dir. Directories are only
// reachable when they contain an index.html, so the root is never listed.
func FileSystem(dir string) http.FileSystem {
	return noListingFS{http.FS(os.DirFS(dir))}
}

// Handler returns an http.Handler that serves files under dir
func Handler(dir string) http.Handler {
	return http.FileServer(FileSystem(dir))
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !stat.IsDir() {
		return f, nil
	}

	index, err := n.fs.Open(path.Join(name, "index.html"))
	if err != nil {
		f.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	index.Close()
	return f, nil
}
