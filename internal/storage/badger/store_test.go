package badger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/common"
)

func TestNewStore_CreatesDirectoryAndOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewStore(common.NewSilentLogger(), path)
	require.NoError(t, err)
	defer s.Close()

	assert.DirExists(t, path)
	assert.NotNil(t, s.DB())
}

func TestStore_CloseIsIdempotentSafeOnNil(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
