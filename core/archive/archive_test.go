package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/resfs"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	fsys := resfs.Dir(dir)
	for p, data := range files {
		if err := resfs.WriteFile(fsys, p, []byte(data)); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
}

// TestPackUnpackRoundTrip packs a small course tree with the default
// compression and checks that unpacking restores it byte for byte.
func TestPackUnpackRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	files := map[string]string{
		"course/2024.xml":           `<course display_name="Demo"/>`,
		"html/intro.html":           "<p>Welcome</p>",
		"policies/2024/policy.json": `{"course/2024": {}}`,
	}
	writeTree(t, src, files)

	archivePath := filepath.Join(tmp, "course.tar.xz")
	manifest, err := Pack(src, archivePath, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if got, want := len(manifest.Files), 3; got != want {
		t.Fatalf("manifest lists %d files, want %d", got, want)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		t.Fatalf("DetectCompression: %v", err)
	}
	if compression != CompressionXZ {
		t.Errorf("compression = %s, want %s", compression, CompressionXZ)
	}

	dest := filepath.Join(tmp, "dest")
	restored, err := Unpack(archivePath, dest)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if restored == nil {
		t.Fatal("Unpack returned no manifest")
	}
	for p, want := range files {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(p)))
		if err != nil {
			t.Fatalf("reading restored %s: %v", p, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", p, data, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, ManifestName)); err != nil {
		t.Errorf("restored tree should carry the manifest: %v", err)
	}
}

// TestPackGzip checks the alternate compression format end to end.
func TestPackGzip(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeTree(t, src, map[string]string{"course/2024.xml": "<course/>"})

	archivePath := filepath.Join(tmp, "course.tar.gz")
	if _, err := Pack(src, archivePath, &PackOptions{Compression: CompressionGzip}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		t.Fatalf("DetectCompression: %v", err)
	}
	if compression != CompressionGzip {
		t.Errorf("compression = %s, want %s", compression, CompressionGzip)
	}

	dest := filepath.Join(tmp, "dest")
	if _, err := Unpack(archivePath, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "course", "2024.xml"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(data) != "<course/>" {
		t.Errorf("restored = %q", data)
	}
}

// TestDetectCompression checks the magic-byte sniffing against known
// and unknown prefixes.
func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    CompressionType
		wantErr error
	}{
		{name: "gzip", data: []byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0}, want: CompressionGzip},
		{name: "xz", data: []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0, 0}, want: CompressionXZ},
		{name: "zip", data: []byte("PK\x03\x04\x00\x00"), wantErr: errors.ErrUnsupported},
		{name: "too short", data: []byte{0x1f}, wantErr: errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "f")
			if err := os.WriteFile(p, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := DetectCompression(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectCompression: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// TestUnpackSkipsTraversal feeds Unpack a crafted archive whose entries
// point outside the destination and checks that they are ignored while
// honest entries are restored. An archive without a manifest is legal:
// Unpack returns nil for it.
func TestUnpackSkipsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	entries := []struct {
		name string
		data string
	}{
		{"../evil.txt", "escaped"},
		{"/abs.txt", "absolute"},
		{"ok.txt", "fine"},
	}
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.data))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "crafted.tar.gz")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(tmp, "dest")
	manifest, err := Unpack(archivePath, dest)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if manifest != nil {
		t.Errorf("manifest = %v, want nil for an archive without one", manifest)
	}

	if _, err := os.Stat(filepath.Join(tmp, "evil.txt")); err == nil {
		t.Error("traversal entry escaped the destination")
	}
	if _, err := os.Stat(filepath.Join(dest, "abs.txt")); err == nil {
		t.Error("absolute entry should be skipped")
	}
	data, err := os.ReadFile(filepath.Join(dest, "ok.txt"))
	if err != nil {
		t.Fatalf("honest entry not restored: %v", err)
	}
	if string(data) != "fine" {
		t.Errorf("ok.txt = %q", data)
	}
}

// TestVerify tampers with a restored tree in three ways and checks that
// each shows up in the verification report.
func TestVerify(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeTree(t, src, map[string]string{
		"course/2024.xml":           `<course/>`,
		"html/intro.html":           "<p>Welcome</p>",
		"policies/2024/policy.json": `{}`,
	})
	archivePath := filepath.Join(tmp, "course.tar.xz")
	if _, err := Pack(src, archivePath, nil); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	dest := filepath.Join(tmp, "dest")
	manifest, err := Unpack(archivePath, dest)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	if err := Verify(dest, manifest); err != nil {
		t.Fatalf("pristine tree should verify: %v", err)
	}

	// Same-size edit, a deleted file, and a file the manifest never saw.
	if err := os.WriteFile(filepath.Join(dest, "html", "intro.html"), []byte("<p>Goodbye</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dest, "policies", "2024", "policy.json")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "extra.xml"), []byte("<x/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = Verify(dest, manifest)
	if err == nil {
		t.Fatal("tampered tree should not verify")
	}
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want *VerifyError", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("got %d problems, want 3: %v", len(verr.Problems), verr.Problems)
	}
	for _, want := range []string{"sha256 mismatch", "missing", "not in manifest"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("report %q should mention %q", err.Error(), want)
		}
	}
}

// TestPackIgnoresStaleManifest checks that a manifest left at the root
// by an earlier unpack is replaced, not packed as course content.
func TestPackIgnoresStaleManifest(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeTree(t, src, map[string]string{
		ManifestName:      "stale garbage",
		"course/2024.xml": "<course/>",
	})

	archivePath := filepath.Join(tmp, "course.tar.xz")
	manifest, err := Pack(src, archivePath, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, ok := manifest.Files[ManifestName]; ok {
		t.Error("the manifest should not list itself")
	}

	dest := filepath.Join(tmp, "dest")
	if _, err := Unpack(archivePath, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	restored, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("restored manifest should be fresh, not the stale one: %v", err)
	}
	if restored.ArchiveVersion != ManifestVersion {
		t.Errorf("ArchiveVersion = %q, want %q", restored.ArchiveVersion, ManifestVersion)
	}
}

// TestPackMissingSource checks the error for a source directory that
// does not exist.
func TestPackMissingSource(t *testing.T) {
	tmp := t.TempDir()
	_, err := Pack(filepath.Join(tmp, "nope"), filepath.Join(tmp, "out.tar.xz"), nil)
	if err == nil {
		t.Fatal("packing a missing directory should fail")
	}
}

// TestPackCompressionFailure checks that a failing compression writer
// surfaces instead of producing a silent empty archive.
func TestPackCompressionFailure(t *testing.T) {
	orig := xzNewWriter
	xzNewWriter = func(io.Writer) (*xz.Writer, error) {
		return nil, fmt.Errorf("no xz today")
	}
	defer func() { xzNewWriter = orig }()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	writeTree(t, src, map[string]string{"course/2024.xml": "<course/>"})

	_, err := Pack(src, filepath.Join(tmp, "out.tar.xz"), nil)
	if err == nil {
		t.Fatal("Pack should fail when the compression writer cannot be created")
	}
	if !strings.Contains(err.Error(), "creating compression writer") {
		t.Errorf("err = %v", err)
	}
}
