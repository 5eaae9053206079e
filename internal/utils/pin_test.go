package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPIN(t *testing.T) {
	encoded, err := HashPIN("1234")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := VerifyPIN("1234", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPIN("0000", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPINUniqueSalt(t *testing.T) {
	a, err := HashPIN("1234")
	require.NoError(t, err)
	b, err := HashPIN("1234")
	require.NoError(t, err)
	// 相同PIN因随机盐得到不同散列
	assert.NotEqual(t, a, b)
}

func TestVerifyPINBadFormat(t *testing.T) {
	_, err := VerifyPIN("1234", "not-a-hash")
	assert.Error(t, err)

	_, err = VerifyPIN("1234", "$bcrypt$v=19$m=1,t=1,p=1$aaaa$bbbb")
	assert.Error(t, err)
}
