package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

const (
	// ManifestName is the archive entry that holds the manifest. It is
	// always the first entry, so a consumer can read it without
	// scanning the whole archive.
	ManifestName = "olx-manifest.json"

	// ManifestVersion is the current manifest format version.
	ManifestVersion = "1.0.0"
)

// FileRecord describes one packed file.
type FileRecord struct {
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
}

// Manifest indexes every file in a course archive by its slash-separated
// path relative to the course root.
type Manifest struct {
	ArchiveVersion string                 `json:"archive_version"`
	CreatedAt      string                 `json:"created_at"`
	Files          map[string]*FileRecord `json:"files"`
}

// NewManifest creates an empty manifest stamped with the current time.
func NewManifest() *Manifest {
	return &Manifest{
		ArchiveVersion: ManifestVersion,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		Files:          make(map[string]*FileRecord),
	}
}

// Record hashes data and adds it to the manifest under path.
func (m *Manifest) Record(path string, data []byte) *FileRecord {
	rec := digest(data)
	m.Files[path] = rec
	return rec
}

func digest(data []byte) *FileRecord {
	sum := sha256.Sum256(data)
	b3 := blake3.Sum256(data)
	return &FileRecord{
		SHA256:    hex.EncodeToString(sum[:]),
		BLAKE3:    hex.EncodeToString(b3[:]),
		SizeBytes: int64(len(data)),
	}
}

// Paths returns the recorded file paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Files == nil {
		m.Files = make(map[string]*FileRecord)
	}
	return &m, nil
}
