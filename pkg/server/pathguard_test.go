package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathKeepsWithinRoot(t *testing.T) {
	p, err := resolvePath("/srv/tftp", "boot/image.bin")
	require.NoError(t, err)
	assert.Equal(t, "/srv/tftp/boot/image.bin", p)
}

func TestResolvePathRejectsParentTraversal(t *testing.T) {
	_, err := resolvePath("/srv/tftp", "../../etc/passwd")
	require.ErrorIs(t, err, errPathEscapesRoot)
}

func TestResolvePathRejectsSingleParentEscape(t *testing.T) {
	_, err := resolvePath("/srv/tftp", "../outside.bin")
	require.ErrorIs(t, err, errPathEscapesRoot)
}

func TestResolvePathAllowsDotPrefixedSibling(t *testing.T) {
	// "..hidden" is not a ".." traversal, just an unusual filename.
	p, err := resolvePath("/srv/tftp", "..hidden")
	require.NoError(t, err)
	assert.Equal(t, "/srv/tftp/..hidden", p)
}
