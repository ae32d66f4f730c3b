package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "outputs")
	elsewhere := filepath.Join(tmp, "elsewhere")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.MkdirAll(elsewhere, 0o755))
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(out, "linked")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"label dir", filepath.Join(out, "match"), false},
		{"nested not yet created", filepath.Join(out, "match", "per_id", "id_3.png"), false},
		{"root itself", out, false},
		{"dot-dot escape", filepath.Join(out, "..", "elsewhere"), true},
		{"sibling with shared prefix", out + "-old", true},
		{"symlinked label", filepath.Join(out, "linked", "overall.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDirectory(tt.path, out)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithinDirectoryMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet")
	assert.NoError(t, WithinDirectory(filepath.Join(root, "label"), root))
	assert.Error(t, WithinDirectory(filepath.Join(root, "..", "x"), root))
}
