package fits

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// extensions are the file suffixes treated as FITS images.
var extensions = map[string]bool{
	".fits": true,
	".fit":  true,
	".fts":  true,
}

// Find walks root recursively and returns the paths of all FITS files
// under it, sorted, so runs over the same directory are deterministic.
func Find(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
