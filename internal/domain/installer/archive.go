package installer

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/nodegraph/internal/domain/manifest"
	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Format identifies an archive container
type Format string

const (
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// entry is one file or directory inside an archive
type entry struct {
	name    string
	size    int64
	dir     bool
	special bool
	data    []byte
	open    func() (io.ReadCloser, error)
}

func (e *entry) reader() (io.ReadCloser, error) {
	if e.open != nil {
		return e.open()
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// archive is an in-memory view of an uploaded archive
type archive struct {
	format  Format
	entries []*entry
}

func invalidArchive(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidArchive, fmt.Sprintf(format, args...))
}

// DetectFormat sniffs the archive container, falling back to the declared file name.
func DetectFormat(data []byte, declaredName string) (Format, error) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return FormatZip, nil
		case m.Is("application/gzip"):
			return FormatTarGz, nil
		case m.Is("application/zstd"):
			return FormatTarZst, nil
		case m.Is("application/x-tar"):
			return FormatTar, nil
		}
	}

	name := strings.ToLower(declaredName)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		return FormatTarZst, nil
	case strings.HasSuffix(name, ".tar"):
		return FormatTar, nil
	}
	return "", invalidArchive("unsupported archive format for %q", declaredName)
}

// openArchive indexes every entry of data. Tar payloads are buffered up to
// maxEntry bytes each; larger entries keep only their declared size.
func openArchive(data []byte, declaredName string, maxEntry, maxTotal int64) (*archive, error) {
	format, err := DetectFormat(data, declaredName)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatZip:
		return openZip(data)
	case FormatTarGz:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, invalidArchive("gzip: %v", err)
		}
		defer gz.Close()
		return openTar(gz, format, maxEntry, maxTotal)
	case FormatTarZst:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, invalidArchive("zstd: %v", err)
		}
		defer zr.Close()
		return openTar(zr, format, maxEntry, maxTotal)
	default:
		return openTar(bytes.NewReader(data), format, maxEntry, maxTotal)
	}
}

func openZip(data []byte) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalidArchive("zip: %v", err)
	}

	a := &archive{format: FormatZip}
	for _, f := range zr.File {
		name, err := cleanEntryName(f.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}
		mode := f.Mode()
		a.entries = append(a.entries, &entry{
			name:    name,
			size:    int64(f.UncompressedSize64),
			dir:     mode.IsDir(),
			special: !mode.IsDir() && !mode.IsRegular(),
			open:    f.Open,
		})
	}
	return a, nil
}

func openTar(r io.Reader, format Format, maxEntry, maxTotal int64) (*archive, error) {
	tr := tar.NewReader(r)
	a := &archive{format: format}
	var total int64

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidArchive("tar: %v", err)
		}

		name, err := cleanEntryName(hdr.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}

		e := &entry{name: name, size: hdr.Size}
		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			continue
		case tar.TypeDir:
			e.dir = true
		case tar.TypeReg:
			if hdr.Size <= maxEntry {
				total += hdr.Size
				if maxTotal > 0 && total > maxTotal {
					return nil, &types.FileTooLargeError{Entry: "(archive total)", Size: total, Limit: maxTotal}
				}
				buf, err := io.ReadAll(io.LimitReader(tr, maxEntry+1))
				if err != nil {
					return nil, invalidArchive("tar entry %s: %v", name, err)
				}
				e.data = buf
			}
		default:
			e.special = true
		}
		a.entries = append(a.entries, e)
	}
	return a, nil
}

// cleanEntryName normalizes an entry path. It returns "" for entries that
// should be ignored and an error for paths escaping the archive root.
func cleanEntryName(raw string) (string, error) {
	n := strings.ReplaceAll(raw, `\`, "/")
	if strings.HasPrefix(n, "/") || (len(n) > 1 && n[1] == ':') {
		return "", invalidArchive("absolute entry path %q", raw)
	}
	c := path.Clean(n)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", invalidArchive("entry %q escapes the archive root", raw)
	}
	if c == "." || c == "__MACOSX" || strings.HasPrefix(c, "__MACOSX/") || path.Base(c) == ".DS_Store" {
		return "", nil
	}
	return c, nil
}

// locateManifest finds manifest.json at the root or inside a single wrapper
// folder and returns the descriptor entry and the prefix to strip.
func (a *archive) locateManifest() (*entry, string, error) {
	var nested []*entry
	for _, e := range a.entries {
		if e.dir || e.special {
			continue
		}
		if e.name == manifest.FileName {
			return e, "", nil
		}
		if dir, file := path.Split(e.name); file == manifest.FileName && strings.Count(dir, "/") == 1 {
			nested = append(nested, e)
		}
	}

	switch len(nested) {
	case 0:
		return nil, "", types.ErrMissingManifest
	case 1:
		dir, _ := path.Split(nested[0].name)
		return nested[0], dir, nil
	default:
		return nil, "", invalidArchive("found %d manifests in separate folders", len(nested))
	}
}

// strip keeps only the entries under prefix and removes it from their names.
func (a *archive) strip(prefix string) {
	if prefix == "" {
		return
	}
	kept := a.entries[:0]
	for _, e := range a.entries {
		if !strings.HasPrefix(e.name, prefix) {
			continue
		}
		e.name = strings.TrimPrefix(e.name, prefix)
		kept = append(kept, e)
	}
	a.entries = kept
}

// checkSizes rejects the first entry whose declared size exceeds limit.
func (a *archive) checkSizes(limit int64) error {
	for _, e := range a.entries {
		if !e.dir && e.size > limit {
			return &types.FileTooLargeError{Entry: e.name, Size: e.size, Limit: limit}
		}
	}
	return nil
}

// extract writes every entry into dest and returns the number of files written.
func (a *archive) extract(dest string, limit int64) (int, error) {
	files := 0
	for _, e := range a.entries {
		if e.special {
			return files, invalidArchive("entry %s is not a regular file", e.name)
		}

		target, err := paths.Within(dest, e.name)
		if err != nil {
			return files, invalidArchive("%v", err)
		}

		if e.dir {
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, fmt.Errorf("failed to create directory %s: %w", e.name, err)
			}
			continue
		}

		if err := writeEntry(e, target, limit); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func writeEntry(e *entry, target string, limit int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", e.name, err)
	}

	src, err := e.reader()
	if err != nil {
		return invalidArchive("open %s: %v", e.name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", e.name, err)
	}
	defer dst.Close()

	// Declared sizes can lie; enforce the ceiling on the actual stream too
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return invalidArchive("read %s: %v", e.name, err)
	}
	if n > limit {
		return &types.FileTooLargeError{Entry: e.name, Size: n, Limit: limit}
	}
	return nil
}
