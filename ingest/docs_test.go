package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dagger77/tabdoc/knowledge"
)

func TestLoadDocs(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"lunch.rtf":   `{\rtf1\ansi Students on free or reduced lunch tend to score lower on average.\par}`,
		"sports.rtf":  `{\rtf1\ansi Regular sport practice correlates with slightly higher writing scores.\par}`,
		"ignore.txt":  "not an rtf file",
		"empty.rtf":   `{\rtf1\ansi{\fonttbl{\f0 Helvetica;}}}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	kb, err := knowledge.NewBleveIndex("")
	require.NoError(t, err)
	defer kb.Close()

	n, err := LoadDocs(context.Background(), kb, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "txt and empty rtf files are skipped")

	count, err := kb.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	docs, err := kb.Search(context.Background(), "free lunch scores", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "lunch.rtf", docs[0].Metadata["source"])
	assert.Contains(t, docs[0].Content, "reduced lunch")
}

func TestLoadDocsEmptyDir(t *testing.T) {
	kb, err := knowledge.NewBleveIndex("")
	require.NoError(t, err)
	defer kb.Close()

	n, err := LoadDocs(context.Background(), kb, t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n)
}
