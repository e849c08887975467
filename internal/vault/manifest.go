package vault

import (
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/zeebo/blake3"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

// ManifestName is the inventory file written at the vault root.
const ManifestName = "manifest.json"

// Manifest inventories an exported vault: every file with its BLAKE3 hash
// and size, so a copy can be verified without the source corpus.
type Manifest struct {
	GeneratedAt string                 `json:"generated_at"`
	Generator   string                 `json:"generator"`
	FileCount   int                    `json:"file_count"`
	TotalBytes  int64                  `json:"total_bytes"`
	Files       map[string]*FileRecord `json:"files"`
}

// FileRecord describes one vault file, keyed in the manifest by its
// slash-separated path relative to the vault root.
type FileRecord struct {
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
}

// ReadManifest loads the inventory of an exported vault.
func ReadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.NewNotFound("manifest", path)
		}
		return nil, cerrors.NewIO("read", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cerrors.NewParse("manifest", path, err.Error())
	}
	return &m, nil
}

// writeManifest hashes every file under root and writes the inventory next
// to them. The manifest never lists itself.
func writeManifest(root string) (*Manifest, error) {
	m := &Manifest{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Generator:   "bodhicanon",
		Files:       make(map[string]*FileRecord),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestName {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := blake3.Sum256(data)
		m.Files[rel] = &FileRecord{
			BLAKE3:    hex.EncodeToString(sum[:]),
			SizeBytes: int64(len(data)),
		}
		m.TotalBytes += int64(len(data))
		return nil
	})
	if err != nil {
		return nil, cerrors.Wrap(err, "hashing vault files")
	}
	m.FileCount = len(m.Files)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, cerrors.Wrap(err, "encoding manifest")
	}
	path := filepath.Join(root, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return nil, cerrors.NewIO("write", path, err)
	}
	return m, nil
}
