package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pokerjest/mediasorter/internal/parser"
)

// 下载未完成的临时文件后缀
var partialExts = []string{".part", ".!qb", ".crdownload", ".tmp", ".downloading", ".aria2"}

// Eligible reports whether path is a finished, unprocessed video file that is
// large enough to be worth handling.
func (o *Organizer) Eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !parser.IsVideoFile(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range partialExts {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	if o.deps.Ledger.Contains(path) || o.insideOutput(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() >= o.settings.MinFileSize
}

// Pending walks the source directories and returns every eligible file.
// Hidden directories and the destination tree are skipped.
func (o *Organizer) Pending() []string {
	var out []string
	for _, root := range o.settings.SourceDirs {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				o.logger.Warn().Err(err).Str("path", path).Msg("walk failed")
				return nil
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || o.isOutput(path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if o.Eligible(path) {
				out = append(out, path)
			}
			return nil
		})
	}
	return out
}

// Scan processes every pending file once.
func (o *Organizer) Scan(ctx context.Context) []Result {
	paths := o.Pending()
	if len(paths) == 0 {
		return nil
	}
	o.logger.Info().Int("files", len(paths)).Msg("scan found pending files")
	return o.ProcessBatch(ctx, paths)
}

func (o *Organizer) isOutput(dir string) bool {
	for _, out := range []string{o.settings.DestDir, o.settings.UnidentifiedDir} {
		if out != "" && filepath.Clean(dir) == filepath.Clean(out) {
			return true
		}
	}
	return false
}

// insideOutput reports whether path lies under the library or the unidentified
// folder, which may themselves sit inside a source dir.
func (o *Organizer) insideOutput(path string) bool {
	for _, out := range []string{o.settings.DestDir, o.settings.UnidentifiedDir} {
		if out == "" {
			continue
		}
		rel, err := filepath.Rel(out, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
