package server

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolvePath joins name under root and verifies the result does not
// escape root, closing the "rootDir + / + filename" traversal gap the
// original implementation left open (a ".." segment, or an absolute
// path in name, could otherwise reach outside root).
func resolvePath(root, name string) (string, error) {
	cleanRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("error while resolving root dir: %w", err)
	}

	joined := filepath.Join(cleanRoot, name)

	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil {
		return "", fmt.Errorf("error while resolving requested path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errPathEscapesRoot
	}

	return joined, nil
}
