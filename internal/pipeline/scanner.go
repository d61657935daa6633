package pipeline

import (
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/source"
)

// Source is one input of a batch run.
type Source struct {
	// Key identifies the source in the manifest (relative path without
	// extension, forward slashes).
	Key   string
	Input source.Input
}

// ScanImages walks inputDir and returns every file whose extension is a
// known image format. Hidden directories are skipped.
func ScanImages(inputDir string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(inputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != inputDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(p)
		if _, err := format.Normalize(ext); err != nil || ext == "" {
			return nil
		}

		rel, err := filepath.Rel(inputDir, p)
		if err != nil {
			return err
		}
		sources = append(sources, Source{
			Key:   filepath.ToSlash(strings.TrimSuffix(rel, ext)),
			Input: source.FromPath(p),
		})
		return nil
	})

	return sources, err
}

// SourceForArg builds a batch source from a CLI argument that is a file
// path or URL.
func SourceForArg(arg string) Source {
	in := source.Parse(arg)
	if in.Kind() == source.RemoteURL {
		key := arg
		if u, err := url.Parse(arg); err == nil {
			key = strings.TrimSuffix(u.Host+u.Path, path.Ext(u.Path))
		}
		return Source{Key: key, Input: in}
	}
	base := filepath.Base(arg)
	return Source{Key: strings.TrimSuffix(base, filepath.Ext(base)), Input: in}
}
