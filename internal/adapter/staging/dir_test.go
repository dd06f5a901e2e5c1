package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/distbuild.net/internal/adapter/logging"
)

func TestStageIsUniquePerSubmission(t *testing.T) {
	root := t.TempDir()
	s := NewDirStager(root, logging.NewNopLogger())

	p1, err := s.Stage("x.c", []byte("one"))
	require.NoError(t, err)
	p2, err := s.Stage("x.c", []byte("two"))
	require.NoError(t, err)

	require.NotEqual(t, p1, p2)
	require.Equal(t, "x.c", filepath.Base(p1))

	got, err := s.ReadArtifact(p2)
	require.NoError(t, err)
	require.Equal(t, "two", string(got))
}

func TestStageStripsDirectories(t *testing.T) {
	root := t.TempDir()
	s := NewDirStager(root, logging.NewNopLogger())

	p, err := s.Stage("../../etc/evil.c", []byte("x"))
	require.NoError(t, err)
	rel, err := filepath.Rel(root, p)
	require.NoError(t, err)
	require.Equal(t, "evil.c", filepath.Base(rel))
	require.NotContains(t, rel, "..")

	_, err = s.Stage("", []byte("x"))
	require.Error(t, err)
}

func TestCleanupRemovesSubmissionDir(t *testing.T) {
	root := t.TempDir()
	s := NewDirStager(root, logging.NewNopLogger())

	p, err := s.Stage("x.c", []byte("src"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(p), "x.o"), []byte{0xDE, 0xAD}, 0o644))

	s.Cleanup(p)
	_, err = os.Stat(filepath.Dir(p))
	require.True(t, os.IsNotExist(err))
}
