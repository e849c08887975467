// Package archive packs a directory tree into a compressed tar snapshot and
// restores it. Vault exports use it for distributable .tar.xz snapshots;
// gzip is available where decode speed matters more than size.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

// Compression selects the stream codec wrapped around the tar archive.
type Compression string

const (
	// CompressionXZ is the default codec, best ratio.
	CompressionXZ Compression = "xz"
	// CompressionGzip is the stdlib codec, faster.
	CompressionGzip Compression = "gzip"
)

// PackOptions configures snapshot packing.
type PackOptions struct {
	// Compression selects the codec. Defaults to XZ.
	Compression Compression
}

// DefaultPackOptions returns the default packing options (XZ).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{Compression: CompressionXZ}
}

// Pack writes the directory tree rooted at srcDir into a compressed tar
// archive at archivePath. Entry names are relative to srcDir.
func Pack(srcDir, archivePath string, opts *PackOptions) error {
	if opts == nil {
		opts = DefaultPackOptions()
	}
	if info, err := os.Stat(srcDir); err != nil {
		return cerrors.NewIO("stat", srcDir, err)
	} else if !info.IsDir() {
		return cerrors.NewValidation("srcDir", "not a directory")
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return cerrors.NewIO("create", archivePath, err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return cerrors.Wrap(err, "creating gzip writer")
		}
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xz.NewWriter(file)
		if err != nil {
			return cerrors.Wrap(err, "creating xz writer")
		}
	}

	tarWriter := tar.NewWriter(compressWriter)
	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return writeToTar(tarWriter, filepath.ToSlash(relPath), data)
	})
	if walkErr != nil {
		return cerrors.Wrap(walkErr, "packing "+srcDir)
	}

	// Close in stream order so buffered compressor output reaches the file.
	if err := tarWriter.Close(); err != nil {
		return cerrors.NewIO("finalize archive", archivePath, err)
	}
	if err := compressWriter.Close(); err != nil {
		return cerrors.NewIO("finalize archive", archivePath, err)
	}
	if err := file.Close(); err != nil {
		return cerrors.NewIO("close", archivePath, err)
	}
	return nil
}

// DetectCompression identifies the codec of an archive by its magic bytes.
func DetectCompression(archivePath string) (Compression, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", cerrors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", cerrors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", cerrors.NewValidation("archive", "file too small to detect compression")
	}

	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}
	return "", cerrors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack extracts an archive into destDir, auto-detecting the codec.
// Entries whose cleaned names climb out of the destination are skipped.
func Unpack(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return cerrors.NewIO("create directory", destDir, err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		return err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return cerrors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	var decompressReader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return cerrors.Wrap(err, "creating gzip reader")
		}
		defer gzReader.Close()
		decompressReader = gzReader
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return cerrors.Wrap(err, "creating xz reader")
		}
		decompressReader = xzReader
	}

	tarReader := tar.NewReader(decompressReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cerrors.NewParse("tar archive", archivePath, err.Error())
		}

		cleanPath := filepath.Clean(filepath.FromSlash(header.Name))
		if strings.HasPrefix(cleanPath, "..") || filepath.IsAbs(cleanPath) {
			continue
		}
		destPath := filepath.Join(destDir, cleanPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return cerrors.NewIO("create directory", destPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return cerrors.NewIO("create directory", filepath.Dir(destPath), err)
			}
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return cerrors.NewIO("read entry", header.Name, err)
			}
			if err := os.WriteFile(destPath, data, 0644); err != nil {
				return cerrors.NewIO("write", destPath, err)
			}
		}
	}
	return nil
}

func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
