package disk

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/synthcache/store"
)

var fpA = strings.Repeat("a", 64)

func newTestDisk(t *testing.T, cfg Config) *Disk {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	d, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var out []string
	for _, e := range ents {
		if strings.HasSuffix(e.Name(), tmpSuffix) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestWriteReadExists(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t, Config{})

	if ok, err := d.Exists(ctx, fpA); err != nil || ok {
		t.Fatalf("Exists before write: ok=%v err=%v", ok, err)
	}
	if _, err := d.Read(ctx, fpA); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Read before write: err=%v want ErrNotFound", err)
	}

	audio := []byte("RIFF....WAVEdata")
	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: audio, Format: "wav"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if ok, err := d.Exists(ctx, fpA); err != nil || !ok {
		t.Fatalf("Exists after write: ok=%v err=%v", ok, err)
	}
	e, err := d.Read(ctx, fpA)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(e.Audio, audio) || e.Format != "wav" || e.Fingerprint != fpA {
		t.Fatalf("Read mismatch: %+v", e)
	}

	// canonical layout, no leftovers
	if _, err := os.Stat(filepath.Join(d.Root(), fpA+".wav")); err != nil {
		t.Fatalf("artifact not at canonical path: %v", err)
	}
	if tf := tempFiles(t, d.Root()); len(tf) != 0 {
		t.Fatalf("temp files left behind: %v", tf)
	}
}

func TestWriteExistingIsNoop(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t, Config{})

	first := []byte("first")
	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: first}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: []byte("second")}); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	e, err := d.Read(ctx, fpA)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(e.Audio, first) {
		t.Fatalf("existing entry was rewritten: %q", e.Audio)
	}
}

// Something other than a file squatting on the artifact path must surface as
// a write error, not pass as an existing entry.
func TestWriteOverNonRegularFails(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t, Config{})
	if err := os.Mkdir(d.Path(fpA), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: []byte("x")}); err == nil {
		t.Fatalf("expected error writing over a directory")
	}
	if ok, err := d.Exists(ctx, fpA); err != nil || ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
	if tf := tempFiles(t, d.Root()); len(tf) != 0 {
		t.Fatalf("temp files left behind: %v", tf)
	}
}

func TestWriteFailureLeavesNothing(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	ctx := context.Background()
	d := newTestDisk(t, Config{})

	if err := os.Chmod(d.Root(), 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(d.Root(), 0o755) })

	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: []byte("x")}); err == nil {
		t.Fatalf("expected write error on read-only root")
	}
	_ = os.Chmod(d.Root(), 0o755)
	if ok, _ := d.Exists(ctx, fpA); ok {
		t.Fatalf("failed write left an entry")
	}
	if tf := tempFiles(t, d.Root()); len(tf) != 0 {
		t.Fatalf("failed write left temp files: %v", tf)
	}
}

func TestRejectsInvalidFingerprint(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t, Config{})

	bad := "../../etc/passwd"
	if _, err := d.Exists(ctx, bad); !errors.Is(err, store.ErrInvalidFingerprint) {
		t.Fatalf("Exists: err=%v", err)
	}
	if _, err := d.Read(ctx, bad); !errors.Is(err, store.ErrInvalidFingerprint) {
		t.Fatalf("Read: err=%v", err)
	}
	if err := d.Write(ctx, &store.Entry{Fingerprint: bad}); !errors.Is(err, store.ErrInvalidFingerprint) {
		t.Fatalf("Write: err=%v", err)
	}
}

func TestWriteRejectsForeignFormat(t *testing.T) {
	d := newTestDisk(t, Config{})
	if err := d.Write(context.Background(), &store.Entry{Fingerprint: fpA, Format: "mp3"}); err == nil {
		t.Fatalf("expected format mismatch error")
	}
}

func TestOpenSweepsStaleTempFiles(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "."+fpA+"-123"+tmpSuffix)
	fresh := filepath.Join(root, "."+fpA+"-456"+tmpSuffix)
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("partial"), 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	d := newTestDisk(t, Config{Root: root})
	if d.Swept() != 1 {
		t.Fatalf("Swept=%d want 1", d.Swept())
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale temp file survived: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh temp file removed: %v", err)
	}
}

// Readers racing a writer see either no entry or the full artifact.
func TestConcurrentReadersNeverSeePartial(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t, Config{})
	audio := bytes.Repeat([]byte("0123456789abcdef"), 64<<10) // 1 MiB

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				e, err := d.Read(ctx, fpA)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					errs <- err
					return
				}
				if len(e.Audio) != len(audio) {
					errs <- errors.New("observed partial artifact")
					return
				}
			}
		}()
	}

	if err := d.Write(ctx, &store.Entry{Fingerprint: fpA, Audio: audio}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("reader: %v", err)
	}
}
