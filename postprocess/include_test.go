package postprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteIncludeDirectivesLowercasesAndSlashes(t *testing.T) {
	in := []byte("#include <Windows.h>\n" +
		"  #  include \"VC\\Tools\\Foo.h\" // keep this comment\n" +
		"int x; // not an include\n")
	out := RewriteIncludeDirectives(in)
	assert.Equal(t, "#include <windows.h>\n"+
		"  #  include \"vc/tools/foo.h\" // keep this comment\n"+
		"int x; // not an include\n", string(out))
}

// P8: the rewriter is idempotent.
func TestRewriteIncludeDirectivesIdempotent(t *testing.T) {
	in := []byte("#include <Windows.H>\n#include \"A\\B\\C.h\"\nplain text line\n")
	once := RewriteIncludeDirectives(in)
	twice := RewriteIncludeDirectives(once)
	assert.Equal(t, once, twice)
}

func TestRewriteIncludesInTreeSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "Real.h")
	require.NoError(t, os.WriteFile(target, []byte("#include <Windows.h>\n"), 0644))

	link := filepath.Join(dir, "Link.h")
	if err := os.Symlink("Real.h", link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	require.NoError(t, RewriteIncludesInTree(dir))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "#include <windows.h>\n", string(content))

	linkInfo, err := os.Lstat(link)
	require.NoError(t, err)
	assert.True(t, linkInfo.Mode()&os.ModeSymlink != 0)
}
