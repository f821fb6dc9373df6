package filesystem

// file discovery, moves and small text-file helpers.
import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/multierr"
)

// Suffix of every file written by the field environment logger. Case-sensitive.
const EnvironmentLoggingFilenameEnd = "_environmentlogger.json"

// FileExists Returns false if directory.
func FileExists(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// FindEnvironmentLoggingFiles returns the logger files named directly in fileFolderList plus the
// logger files immediately beneath any folder in it. Folders are not walked recursively.
func FindEnvironmentLoggingFiles(fileFolderList []string) []string {
	foundFiles := make([]string, 0)
	for _, oneName := range fileFolderList {
		info, err := os.Stat(oneName)
		if err == nil && info.IsDir() {
			entries, err := os.ReadDir(oneName)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if strings.HasSuffix(entry.Name(), EnvironmentLoggingFilenameEnd) {
					foundFiles = append(foundFiles, filepath.Join(oneName, entry.Name()))
				}
			}
			continue
		}
		if strings.HasSuffix(oneName, EnvironmentLoggingFilenameEnd) {
			foundFiles = append(foundFiles, oneName)
		}
	}
	return foundFiles
}

// MoveFile renames src to dst, copying across devices when a plain rename is refused.
// dst is replaced if it exists.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, in.Close()) }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	_, err = io.Copy(out, in)
	return err
}

// CopyFile copies src to dst, truncating dst.
func CopyFile(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// RemoveIfExists deletes filePath; a missing file is not an error.
func RemoveIfExists(filePath string) error {
	err := os.Remove(filePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriteTextLines writes/appends the lines to the given file.
func WriteTextLines(lines []string, filePath string, appendData bool) (err error) {
	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if !appendData {
		flags = os.O_TRUNC | os.O_CREATE | os.O_WRONLY
	}
	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return fmt.Errorf("WriteTextLines: %w", err)
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	if _, err = file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("WriteTextLines: %w", err)
	}
	return nil
}
