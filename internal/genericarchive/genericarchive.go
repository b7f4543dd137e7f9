// Package genericarchive extracts the handful of non-VSIX, non-MSI archive
// formats that mirrors occasionally substitute for WDK installers and other
// auxiliary payloads: plain zip, tar (optionally gzip/bzip2/xz/zstd
// compressed), 7z, .deb and .rpm. It is a trimmed-down descendant of
// hermit's archive package, stripped of the macOS-installer extraction paths
// that have no equivalent payload type in this domain.
package genericarchive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	bufra "github.com/avvmoto/buf-readerat"
	"github.com/blakesmith/ar"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zstd"
	"github.com/saracen/go7z"
	"github.com/sassoftware/go-rpmutils"
	"github.com/xi2/xz"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/ui"
)

// Extract "source" into "dest", stripping "strip" leading path components
// from each archive member, the same way extract.Extractor strips VSIX
// Contents/ prefixes. "dest" must not already exist; callers are expected to
// extract into a temporary directory and rename it into place.
func Extract(task *ui.Task, source, dest string, strip int) error {
	f, r, mime, err := openArchive(source)
	if err != nil {
		return err
	}
	defer f.Close() // nolint: gosec

	info, err := f.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	task.Size(int(info.Size()))
	defer task.Done()
	r = io.NopCloser(io.TeeReader(r, task.ProgressWriter()))

	if err := os.MkdirAll(dest, 0700); err != nil {
		return errors.WithStack(err)
	}

	switch mime.String() {
	case "application/zip":
		return extractZip(task, f, info, dest, strip)

	case "application/x-7z-compressed":
		return extract7Zip(f, info.Size(), dest, strip)

	case "application/x-tar":
		return extractTarball(r, dest, strip)

	case "application/vnd.debian.binary-package":
		return extractDebianPackage(r, dest, strip)

	case "application/x-rpm":
		return extractRpmPackage(r, dest, strip)

	default:
		return errors.Errorf("don't know how to extract %s of type %s", source, mime)
	}
}

// Open a potentially compressed archive, returning the MIME type of the
// underlying (decompressed) content.
func openArchive(source string) (f *os.File, r io.Reader, mime *mimetype.MIME, err error) {
	mime, err = mimetype.DetectFile(source)
	if err != nil {
		return nil, nil, mime, errors.WithStack(err)
	}
	f, err = os.Open(source)
	if err != nil {
		return nil, nil, mime, errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()
	r = f
	switch mime.String() {
	case "application/gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, mime, errors.WithStack(err)
		}
		r = zr
	case "application/x-bzip2":
		r = bzip2.NewReader(r)
	case "application/x-xz":
		xr, err := xz.NewReader(r, 0)
		if err != nil {
			return nil, nil, mime, errors.WithStack(err)
		}
		r = xr
	case "application/zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, nil, errors.WithStack(err)
		}
		r = zr
	default:
		return f, r, mime, nil
	}

	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	if err != nil && (!errors.Is(err, io.EOF) || n == 0) {
		return nil, nil, mime, errors.WithStack(err)
	}
	buf = buf[:n]
	mime = mimetype.Detect(buf)
	return f, io.MultiReader(bytes.NewReader(buf), r), mime, nil
}

func extractZip(task *ui.Task, f *os.File, info os.FileInfo, dest string, strip int) error {
	zr, err := zip.NewReader(bufra.NewBufReaderAt(f, int(info.Size())), info.Size())
	if err != nil {
		return errors.WithStack(err)
	}
	sub := task.SubProgress("unpack", len(zr.File))
	defer sub.Done()
	for _, zf := range zr.File {
		sub.Add(1)
		destFile, err := makeDestPath(dest, zf.Name, strip)
		if err != nil {
			return err
		}
		if destFile == "" {
			continue
		}
		if err := extractZipFile(zf, destFile); err != nil {
			return errors.Wrap(err, destFile)
		}
	}
	return nil
}

func extractZipFile(zf *zip.File, destFile string) error {
	zfr, err := zf.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer zfr.Close()
	if zf.Mode().IsDir() {
		return errors.WithStack(os.MkdirAll(destFile, 0700))
	}
	if zf.Mode()&os.ModeSymlink != 0 {
		target, err := io.ReadAll(zfr)
		if err != nil {
			return errors.WithStack(err)
		}
		dir := filepath.Dir(destFile)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(os.Symlink(string(target), destFile))
	}
	if err := os.MkdirAll(filepath.Dir(destFile), 0700); err != nil {
		return errors.WithStack(err)
	}
	w, err := os.OpenFile(destFile, os.O_CREATE|os.O_WRONLY, zf.Mode()&^0077)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(w, zfr); err != nil { // nolint: gosec
		_ = w.Close()
		return errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return errors.WithStack(err)
	}
	_ = os.Chtimes(destFile, zf.Modified, zf.Modified)
	return nil
}

func extractTarball(r io.Reader, dest string, strip int) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return errors.WithStack(err)
		}
		mode := hdr.FileInfo().Mode() &^ 0077
		destFile, err := makeDestPath(dest, hdr.Name, strip)
		if err != nil {
			return err
		}
		if destFile == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destFile), 0700); err != nil {
			return errors.WithStack(err)
		}
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(destFile, 0700); err != nil {
				return errors.Wrapf(err, "%s: failed to create directory", destFile)
			}
		case mode&os.ModeSymlink != 0:
			if err := os.Symlink(hdr.Linkname, destFile); err != nil {
				return errors.Wrapf(err, "%s: failed to create symlink to %s", destFile, hdr.Linkname)
			}
		case hdr.Typeflag&(tar.TypeLink|tar.TypeGNULongLink) != 0 && hdr.Linkname != "":
			src := filepath.Join(dest, hdr.Linkname) // nolint: gosec
			rp, err := filepath.Rel(filepath.Dir(destFile), src)
			if err != nil {
				return errors.WithStack(err)
			}
			if err := os.Symlink(rp, destFile); err != nil {
				return errors.WithStack(err)
			}
		default:
			w, err := os.OpenFile(destFile, os.O_CREATE|os.O_WRONLY, mode)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = io.Copy(w, tr) // nolint: gosec
			_ = w.Close()
			if err != nil {
				return errors.WithStack(err)
			}
			_ = os.Chtimes(destFile, hdr.AccessTime, hdr.ModTime)
		}
	}
	return nil
}

func extractDebianPackage(r io.Reader, dest string, strip int) error {
	reader := ar.NewReader(r)
	for {
		header, err := reader.Next()
		if err != nil {
			return errors.WithStack(err)
		}
		if strings.HasPrefix(header.Name, "data.tar") {
			lr := io.LimitReader(reader, header.Size)
			tmp, err := os.CreateTemp("", "vsprovision-data-*.tar")
			if err != nil {
				return errors.WithStack(err)
			}
			defer os.Remove(tmp.Name()) // nolint: errcheck
			if _, err := io.Copy(tmp, lr); err != nil {
				_ = tmp.Close()
				return errors.WithStack(err)
			}
			if _, err := tmp.Seek(0, io.SeekStart); err != nil {
				_ = tmp.Close()
				return errors.WithStack(err)
			}
			defer tmp.Close() // nolint: errcheck
			f, r, mime, err := openArchive(tmp.Name())
			if err != nil {
				return err
			}
			defer f.Close() // nolint: errcheck
			switch mime.String() {
			case "application/x-tar":
				return extractTarball(r, dest, strip)
			default:
				return errors.Errorf("unsupported data.tar compression %s", mime)
			}
		}
	}
}

func extract7Zip(r io.ReaderAt, size int64, dest string, strip int) error {
	sz, err := go7z.NewReader(r, size)
	if err != nil {
		return errors.WithStack(err)
	}
	for {
		hdr, err := sz.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if hdr.IsEmptyStream && !hdr.IsEmptyFile {
			continue
		}
		destFile, err := makeDestPath(dest, hdr.Name, strip)
		if err != nil {
			return err
		}
		if destFile == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destFile), 0700); err != nil {
			return errors.WithStack(err)
		}
		f, err := os.OpenFile(destFile, os.O_CREATE|os.O_RDWR, 0755) // nolint: gosec
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := io.Copy(f, sz); err != nil {
			_ = f.Close()
			return errors.WithStack(err)
		}
		if err := f.Close(); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func extractRpmPackage(r io.Reader, dest string, strip int) error {
	rpm, err := rpmutils.ReadRpm(r)
	if err != nil {
		return errors.WithStack(err)
	}
	pr, err := rpm.PayloadReader()
	if err != nil {
		return errors.WithStack(err)
	}
	for {
		header, err := pr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if header.Filesize() <= 0 {
			continue
		}
		bts := make([]byte, header.Filesize())
		if _, err := io.ReadFull(pr, bts); err != nil {
			return errors.WithStack(err)
		}
		filename, err := makeDestPath(dest, header.Filename(), strip)
		if err != nil {
			return err
		}
		if filename == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
			return errors.WithStack(err)
		}
		if err := os.WriteFile(filename, bts, os.FileMode(header.Mode())); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// MakeDestPath strips "strip" leading path components from "path" and joins
// the remainder onto "dest", rejecting zip-slip escapes. It is exported so
// the extract package's VSIX unpacker can share the same sanitization.
func MakeDestPath(dest, path string, strip int) (string, error) {
	return makeDestPath(dest, path, strip)
}

func makeDestPath(dest, path string, strip int) (string, error) {
	if err := SanitizeExtractPath(path, dest); err != nil {
		return "", err
	}
	parts := strings.Split(path, "/")
	if len(parts) <= strip {
		return "", nil
	}
	destFile := strings.Join(parts[strip:], "/")
	return filepath.Join(dest, destFile), nil
}

// SanitizeExtractPath rejects archive member paths that would escape
// "destination" once joined, guarding against zip-slip.
// https://snyk.io/research/zip-slip-vulnerability
func SanitizeExtractPath(filePath string, destination string) error {
	destPath := filepath.Join(destination, filePath)
	clean := filepath.Clean(destination)
	if destPath != clean && !strings.HasPrefix(destPath, clean+string(os.PathSeparator)) {
		return errors.Errorf("%s: illegal file path (%s not under %s)", filePath, destPath, destination)
	}
	return nil
}
