package utils

import (
	"path/filepath"

	"github.com/google/uuid"
)

// NamespaceAssets is the namespace for deterministic asset ids derived from paths
var NamespaceAssets = uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")

// GenerateUUID generates a new UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// IsValidUUID checks if a string is a valid UUID.
func IsValidUUID(uuidStr string) bool {
	_, err := uuid.Parse(uuidStr)
	return err == nil
}

// AssetIDForPath returns a UUID v5 for the cleaned path, so importing the same
// file twice yields the same asset id.
func AssetIDForPath(path string) string {
	return uuid.NewSHA1(NamespaceAssets, []byte(filepath.Clean(path))).String()
}
