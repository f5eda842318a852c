// Package util holds small generic helpers shared across tsumugu packages.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Permission constants for file and directory modes created during a sync.
const (
	// DirPerms is used for every directory tsumugu creates under LOCAL.
	DirPerms os.FileMode = 0755
	// FilePerms is used for every regular file tsumugu writes.
	FilePerms os.FileMode = 0644
)

// ExpandPath expands the tilde (~) prefix in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}

	return filepath.Join(home, path[1:]), nil
}

// InvertMap takes a map[K]V and returns a map[V]K.
// It's a generic helper for creating reverse lookup maps for enums.
func InvertMap[K comparable, V comparable](m map[K]V) map[V]K {
	inv := make(map[V]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// MergeAndDeduplicate combines multiple string slices into a single slice,
// removing any duplicate entries. The order of the result is not defined.
func MergeAndDeduplicate(slices ...[]string) []string {
	combined := make(map[string]struct{})
	for _, s := range slices {
		for _, item := range s {
			combined[item] = struct{}{}
		}
	}

	result := make([]string, 0, len(combined))
	for item := range combined {
		result = append(result, item)
	}
	return result
}
