package renamer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// Action 文件转移方式
type Action string

const (
	ActionMove     Action = "move"
	ActionCopy     Action = "copy"
	ActionSymlink  Action = "symlink"
	ActionHardlink Action = "hardlink"
)

// ParseAction accepts move/copy/symlink/hardlink (and the older "link" spelling).
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move":
		return ActionMove, true
	case "copy":
		return ActionCopy, true
	case "symlink", "softlink":
		return ActionSymlink, true
	case "hardlink", "link":
		return ActionHardlink, true
	}
	return "", false
}

// OverwritePolicy decides what happens when the destination already exists.
type OverwritePolicy string

const (
	OverwriteSkip   OverwritePolicy = "skip"
	OverwriteSize   OverwritePolicy = "size"
	OverwriteAlways OverwritePolicy = "always"
)

func ParseOverwritePolicy(s string) (OverwritePolicy, bool) {
	switch p := OverwritePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OverwriteSkip, OverwriteSize, OverwriteAlways:
		return p, true
	}
	return "", false
}

// ErrSkipped is returned when the destination exists and the policy keeps it.
var ErrSkipped = errors.New("destination exists, skipped")

// DefaultSidecarExts 与视频同名的附属文件
var DefaultSidecarExts = []string{".nfo", ".srt", ".ass", ".ssa"}

// Transferer moves/copies/links files into the library.
type Transferer struct {
	sidecarExts []string
	logger      zerolog.Logger
}

func NewTransferer(sidecarExts []string, logger zerolog.Logger) *Transferer {
	if len(sidecarExts) == 0 {
		sidecarExts = DefaultSidecarExts
	}
	exts := make([]string, 0, len(sidecarExts))
	for _, e := range sidecarExts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Transferer{
		sidecarExts: exts,
		logger:      logger.With().Str("component", "transfer").Logger(),
	}
}

// Transfer relocates src to dst and then every sidecar of src, renamed to dst's
// base name. Sidecar failures are logged; only the primary file's outcome is returned.
func (t *Transferer) Transfer(src, dst string, action Action, policy OverwritePolicy) (string, error) {
	// sidecars have to be listed before a move takes the primary away
	sidecars := t.sidecarsOf(src)

	if err := t.transferOne(src, dst, action, policy); err != nil {
		return "", err
	}

	srcBase := strings.TrimSuffix(src, filepath.Ext(src))
	dstBase := strings.TrimSuffix(dst, filepath.Ext(dst))
	for _, sc := range sidecars {
		// "name.zh.srt" -> "<new name>.zh.srt"
		target := dstBase + strings.TrimPrefix(sc, srcBase)
		if err := t.transferOne(sc, target, action, policy); err != nil {
			if !errors.Is(err, ErrSkipped) {
				t.logger.Warn().Err(err).Str("sidecar", sc).Msg("sidecar transfer failed")
			}
			continue
		}
		t.logger.Debug().Str("from", sc).Str("to", target).Msg("sidecar transferred")
	}
	return dst, nil
}

// sidecarsOf lists files next to src sharing its base name with a sidecar extension.
func (t *Transferer) sidecarsOf(src string) []string {
	dir := filepath.Dir(src)
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == filepath.Base(src) {
			continue
		}
		if !strings.HasPrefix(name, base+".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range t.sidecarExts {
			if ext == want {
				out = append(out, filepath.Join(dir, name))
				break
			}
		}
	}
	return out
}

func (t *Transferer) transferOne(src, dst string, action Action, policy OverwritePolicy) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	if dstInfo, err := os.Lstat(dst); err == nil {
		if os.SameFile(srcInfo, dstInfo) {
			// 已经是同一个硬链接
			if action == ActionMove {
				return os.Remove(src)
			}
			return nil
		}
		switch policy {
		case OverwriteAlways:
		case OverwriteSize:
			if srcInfo.Size() <= dstInfo.Size() {
				return ErrSkipped
			}
		default:
			return ErrSkipped
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("remove existing destination: %w", err)
		}
		t.logger.Info().Str("dst", dst).Str("policy", string(policy)).Msg("overwriting existing file")
	}

	switch action {
	case ActionMove:
		return moveFile(src, dst)
	case ActionCopy:
		return copyFile(src, dst)
	case ActionSymlink:
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		return os.Symlink(abs, dst)
	default:
		err := os.Link(src, dst)
		if errors.Is(err, syscall.EXDEV) {
			t.logger.Warn().Str("src", src).Msg("hardlink across devices, copying instead")
			return copyFile(src, dst)
		}
		return err
	}
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	// 跨设备: 复制后删除
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile writes through "<dst>.part" so a partial copy never shows up under the final name.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	part := dst + ".part"
	out, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(part)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err = out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(part, dst)
}
