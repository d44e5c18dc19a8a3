// Package utils provides file system helpers shared by the tag pipeline:
// media kind detection, atomic JSON documents, hashing and path resolution.
package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Media kinds derived from a file extension
const (
	KindImage = "image"
	KindVideo = "video"
	KindAudio = "audio"
)

// MediaExtensions maps supported extensions to their coarse media kind.
var MediaExtensions = map[string]string{
	// Image formats
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,

	// Video formats
	".mp4":  KindVideo,
	".mkv":  KindVideo,
	".avi":  KindVideo,
	".mov":  KindVideo,
	".wmv":  KindVideo,
	".flv":  KindVideo,
	".webm": KindVideo,
	".m4v":  KindVideo,
	".3gp":  KindVideo,
	".ogv":  KindVideo,

	// Audio formats
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".flac": KindAudio,
	".aac":  KindAudio,
	".ogg":  KindAudio,
	".wma":  KindAudio,
	".m4a":  KindAudio,
	".opus": KindAudio,
	".aiff": KindAudio,
}

// SkippedExtensions contains sidecar files media tools leave next to real media.
var SkippedExtensions = map[string]bool{
	".bif":       true,
	".vtt":       true,
	".thumbnail": true,
	".part":      true,
	".tmp":       true,
}

// MediaKind returns the coarse media kind for a path based on its extension, or
// an empty string when the extension is not a known media container.
func MediaKind(filePath string) string {
	return MediaExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// IsMediaFile checks if a file has a supported media extension
func IsMediaFile(filePath string) bool {
	if IsSkippedFile(filePath) {
		return false
	}
	return MediaKind(filePath) != ""
}

// IsSkippedFile checks if a file should be ignored by catalog imports
func IsSkippedFile(filePath string) bool {
	base := filepath.Base(filePath)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return SkippedExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CalculateFileHash returns the SHA256 of the file contents
func CalculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ReadJSON decodes the JSON document at path into v
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteJSONAtomic writes v as 2-space indented UTF-8 JSON without HTML
// escaping. The document is written to a temp file in the same directory and
// renamed over path, so readers see either the old or the new document.
func WriteJSONAtomic(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
