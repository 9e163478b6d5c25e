// Package archive packs an exported course tree into a portable tar
// archive and restores it. Every file is hashed into a manifest that
// travels as the first archive entry, so a consumer can verify a tree
// against the archive it came from without trusting either side.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/edforge/olx/core/errors"
	"github.com/edforge/olx/core/resfs"
)

// Injectable functions for testing.
var (
	gzipNewWriterLevel = gzip.NewWriterLevel
	xzNewWriter        = xz.NewWriter
	manifestToJSON     = (*Manifest).ToJSON
)

// CompressionType specifies the compression algorithm for course archives.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// PackOptions configures archive packing.
type PackOptions struct {
	// Compression specifies the compression algorithm. Defaults to XZ.
	Compression CompressionType
}

// DefaultPackOptions returns the default packing options (XZ compression).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{
		Compression: CompressionXZ,
	}
}

// Pack archives every file under srcDir into archivePath and returns the
// manifest it wrote. Files are walked in sorted order so the same tree
// always produces the same entry sequence. A stale manifest left at the
// root of srcDir by an earlier Unpack is not packed as content.
func Pack(srcDir, archivePath string, opts *PackOptions) (*Manifest, error) {
	if opts == nil {
		opts = DefaultPackOptions()
	}

	fsys := resfs.Dir(srcDir)
	paths, err := walkFiles(fsys, ".")
	if err != nil {
		return nil, err
	}

	// The manifest is the first entry, so every file must be hashed
	// before any entry is written.
	manifest := NewManifest()
	bodies := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if p == ManifestName {
			continue
		}
		data, err := resfs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		manifest.Record(p, data)
		bodies[p] = data
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return nil, errors.NewIO("create archive", archivePath, err)
	}
	err = writeArchive(f, manifest, bodies, opts.Compression)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.NewIO("close archive", archivePath, cerr)
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func writeArchive(w io.Writer, m *Manifest, bodies map[string][]byte, compression CompressionType) error {
	var compressWriter io.WriteCloser
	var err error
	switch compression {
	case CompressionGzip:
		compressWriter, err = gzipNewWriterLevel(w, gzip.BestCompression)
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xzNewWriter(w)
	}
	if err != nil {
		return errors.Wrap(err, "creating compression writer")
	}

	tarWriter := tar.NewWriter(compressWriter)

	manifestData, err := manifestToJSON(m)
	if err != nil {
		return errors.Wrap(err, "serializing manifest")
	}
	if err := writeEntry(tarWriter, ManifestName, manifestData); err != nil {
		return err
	}
	for _, p := range m.Paths() {
		if err := writeEntry(tarWriter, p, bodies[p]); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return errors.Wrap(err, "closing tar stream")
	}
	if err := compressWriter.Close(); err != nil {
		return errors.Wrap(err, "closing compression stream")
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return errors.NewIO("write entry header", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return errors.NewIO("write entry", name, err)
	}
	return nil
}

// DetectCompression detects the compression type of an archive by its
// magic bytes.
func DetectCompression(archivePath string) (CompressionType, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer f.Close()

	magic := make([]byte, 6)
	n, err := f.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	// gzip magic: 1f 8b
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	// xz magic: fd 37 7a 58 5a 00
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack restores an archive into destDir, auto-detecting the
// compression format. Entry paths are cleaned and entries that would
// escape destDir are skipped. It returns the parsed manifest when the
// archive carries one, nil otherwise.
func Unpack(archivePath, destDir string) (*Manifest, error) {
	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open archive", archivePath, err)
	}
	defer f.Close()

	var reader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "creating gzip reader")
		}
		defer gzReader.Close()
		reader = gzReader
	default:
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "creating xz reader")
		}
		reader = xzReader
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.NewIO("create directory", destDir, err)
	}
	fsys := resfs.Dir(destDir)

	tarReader := tar.NewReader(reader)
	var manifest *Manifest
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading archive")
		}

		name := path.Clean(header.Name)
		if name == "." || name == ".." || strings.HasPrefix(name, "../") || strings.HasPrefix(name, "/") {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(name); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, errors.NewIO("read entry", name, err)
			}
			if err := resfs.WriteFile(fsys, name, data); err != nil {
				return nil, err
			}
			if name == ManifestName {
				manifest, err = ParseManifest(data)
				if err != nil {
					return nil, errors.NewParse("archive manifest", name, err.Error())
				}
			}
		}
	}

	return manifest, nil
}

// VerifyError lists the paths that failed verification.
type VerifyError struct {
	Problems []string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verification failed: %s", strings.Join(e.Problems, "; "))
}

// Is reports whether this error matches ErrInvalidInput.
func (e *VerifyError) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// Verify recomputes the hash of every file the manifest lists and
// reports mismatches, missing files, and files present under dir that
// the manifest does not know about. The manifest file itself is exempt.
func Verify(dir string, m *Manifest) error {
	fsys := resfs.Dir(dir)
	var problems []string

	for _, p := range m.Paths() {
		rec := m.Files[p]
		data, err := resfs.ReadFile(fsys, p)
		if err != nil {
			problems = append(problems, p+": missing")
			continue
		}
		got := digest(data)
		switch {
		case got.SizeBytes != rec.SizeBytes:
			problems = append(problems, fmt.Sprintf("%s: size %d, want %d", p, got.SizeBytes, rec.SizeBytes))
		case got.SHA256 != rec.SHA256:
			problems = append(problems, p+": sha256 mismatch")
		case got.BLAKE3 != rec.BLAKE3:
			problems = append(problems, p+": blake3 mismatch")
		}
	}

	paths, err := walkFiles(fsys, ".")
	if err != nil {
		return err
	}
	for _, p := range paths {
		if p == ManifestName {
			continue
		}
		if _, ok := m.Files[p]; !ok {
			problems = append(problems, p+": not in manifest")
		}
	}

	if len(problems) > 0 {
		return &VerifyError{Problems: problems}
	}
	return nil
}

// walkFiles lists every file under dir as slash-separated relative
// paths, depth first with siblings in name order.
func walkFiles(fsys resfs.FS, dir string) ([]string, error) {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, info := range infos {
		child := path.Join(dir, info.Name())
		if info.IsDir() {
			sub, err := walkFiles(fsys, child)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, child)
	}
	return out, nil
}
