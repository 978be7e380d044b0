package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/synthcache/fingerprint"
	"github.com/unkn0wn-root/synthcache/store"
)

const (
	tmpSuffix = ".tmp"

	// DefaultStaleTemp is how old a leftover temp file must be before Open
	// removes it. Younger ones may belong to a live writer in another process.
	DefaultStaleTemp = time.Hour
)

// Disk stores one file per fingerprint at <root>/<fp>.<ext>.
// There is no index: presence of the file is the only metadata.
type Disk struct {
	root string
	ext  string
	perm fs.FileMode

	swept int
}

var _ store.Store = (*Disk)(nil)

type Config struct {
	Root      string        // required
	Ext       string        // "" => "wav"
	FileMode  fs.FileMode   // 0 => 0o644
	StaleTemp time.Duration // 0 => DefaultStaleTemp; <0 disables the sweep
}

// Open creates the root if needed and removes temp files abandoned by an
// interrupted writer.
func Open(cfg Config) (*Disk, error) {
	if cfg.Root == "" {
		return nil, errors.New("disk store: root is required")
	}
	d := &Disk{
		root: filepath.Clean(cfg.Root),
		ext:  strings.TrimPrefix(cfg.Ext, "."),
		perm: cfg.FileMode,
	}
	if d.ext == "" {
		d.ext = "wav"
	}
	if d.perm == 0 {
		d.perm = 0o644
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return nil, fmt.Errorf("disk store: create root: %w", err)
	}

	stale := cfg.StaleTemp
	if stale == 0 {
		stale = DefaultStaleTemp
	}
	if stale > 0 {
		n, err := d.sweep(time.Now().Add(-stale))
		if err != nil {
			return nil, fmt.Errorf("disk store: sweep temp files: %w", err)
		}
		d.swept = n
	}
	return d, nil
}

// Root returns the directory artifacts live in.
func (d *Disk) Root() string { return d.root }

// Swept returns how many abandoned temp files Open removed.
func (d *Disk) Swept() int { return d.swept }

// Path returns the canonical location of fp. It is a pure function of fp.
func (d *Disk) Path(fp string) string {
	return filepath.Join(d.root, fp+"."+d.ext)
}

func (d *Disk) Exists(_ context.Context, fp string) (bool, error) {
	if !fingerprint.Valid(fp) {
		return false, store.ErrInvalidFingerprint
	}
	fi, err := os.Stat(d.Path(fp))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

func (d *Disk) Read(_ context.Context, fp string) (*store.Entry, error) {
	if !fingerprint.Valid(fp) {
		return nil, store.ErrInvalidFingerprint
	}
	f, err := os.Open(d.Path(fp))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, store.ErrNotFound
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &store.Entry{
		Fingerprint: fp,
		Audio:       b,
		Format:      d.ext,
		CreatedAt:   fi.ModTime(),
	}, nil
}

// Write stages the artifact in a temp file next to its final name, syncs it
// and renames it into place. The temp file is removed on every failure path.
func (d *Disk) Write(_ context.Context, e *store.Entry) error {
	if e == nil || !fingerprint.Valid(e.Fingerprint) {
		return store.ErrInvalidFingerprint
	}
	if e.Format != "" && e.Format != d.ext {
		return fmt.Errorf("disk store: format %q does not match store extension %q", e.Format, d.ext)
	}

	final := d.Path(e.Fingerprint)
	if fi, err := os.Stat(final); err == nil {
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("disk store: %s exists and is not a regular file", final)
		}
		return nil // content-addressed; nothing to do
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// same directory as final so the rename never crosses filesystems
	tmp, err := os.CreateTemp(d.root, "."+e.Fingerprint+"-*"+tmpSuffix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(e.Audio); err != nil {
		return err
	}
	if err := tmp.Chmod(d.perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if !e.CreatedAt.IsZero() {
		_ = os.Chtimes(tmpName, e.CreatedAt, e.CreatedAt)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return err
	}
	committed = true

	syncDir(d.root)
	return nil
}

func (d *Disk) Close(context.Context) error { return nil }

// sweep removes temp files last modified before cutoff.
func (d *Disk) sweep(cutoff time.Time) (int, error) {
	ents, err := os.ReadDir(d.root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, de := range ents {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue // raced with a rename
		}
		if fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// syncDir persists the rename. Best effort: not every platform can fsync a
// directory.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
