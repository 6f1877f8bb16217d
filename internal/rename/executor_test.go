package rename

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
}

func TestApply_RenameInPlace(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scan0042.pdf")
	writeFile(t, old)

	res, err := NewLocal(false, "").Apply(old, "acme-invoice.pdf", "invoice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "acme-invoice.pdf"), res.NewPath)
	assert.False(t, res.Moved)

	_, err = os.Stat(res.NewPath)
	assert.NoError(t, err)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestApply_OrganizeIntoCategoryDir(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "organized")
	old := filepath.Join(dir, "scan.pdf")
	writeFile(t, old)

	res, err := NewLocal(true, base).Apply(old, "acme-invoice.pdf", "invoice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "invoice", "acme-invoice.pdf"), res.NewPath)
	assert.True(t, res.Moved)

	_, err = os.Stat(res.NewPath)
	assert.NoError(t, err)
}

func TestApply_OrganizeWithoutBaseDirStaysNearby(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scan.pdf")
	writeFile(t, old)

	res, err := NewLocal(true, "").Apply(old, "invoice.pdf", "invoice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "invoice", "invoice.pdf"), res.NewPath)
	assert.True(t, res.Moved)
}

func TestApply_OrganizeEmptyCategoryStaysInPlace(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scan.pdf")
	writeFile(t, old)

	res, err := NewLocal(true, filepath.Join(dir, "organized")).Apply(old, "renamed.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "renamed.pdf"), res.NewPath)
	assert.False(t, res.Moved)
}

func TestApply_NoOpWhenNameUnchanged(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "already-good.pdf")
	writeFile(t, old)

	res, err := NewLocal(false, "").Apply(old, "already-good.pdf", "invoice")
	require.NoError(t, err)
	assert.Equal(t, old, res.NewPath)

	_, err = os.Stat(old)
	assert.NoError(t, err, "file untouched")
}

func TestApply_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.pdf")
	existing := filepath.Join(dir, "taken.pdf")
	writeFile(t, old)
	writeFile(t, existing)

	_, err := NewLocal(false, "").Apply(old, "taken.pdf", "invoice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestApply_RejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.pdf")
	writeFile(t, old)

	exec := NewLocal(false, "")

	_, err := exec.Apply(old, "", "invoice")
	assert.Error(t, err)

	_, err = exec.Apply(old, filepath.Join("sub", "b.pdf"), "invoice")
	assert.Error(t, err, "path separators are not allowed in names")
}
