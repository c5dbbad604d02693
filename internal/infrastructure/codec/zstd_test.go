package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstd(t *testing.T) {
	z, err := NewZstd()
	require.NoError(t, err)

	src := bytes.Repeat([]byte(`{"cat":{"nom":{"synonym":"Номенклатура"}}}`), 200)
	packed := z.Compress(src)
	assert.Less(t, len(packed), len(src))

	back, err := z.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, src, back)

	_, err = z.Decompress([]byte("not a frame"))
	assert.Error(t, err)
}
