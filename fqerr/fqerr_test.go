package fqerr

import (
	"testing"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/stretchr/testify/require"
)

func TestKindsProduceDistinguishableErrors(t *testing.T) {
	syntaxErr := ErrSyntax.New("unexpected token")
	shapeErr := ErrShape.New("not iterable")

	require.True(t, errors.Is(syntaxErr, ErrSyntax))
	require.False(t, errors.Is(syntaxErr, ErrShape))
	require.True(t, errors.Is(shapeErr, ErrShape))
}

func TestWrapPreservesKind(t *testing.T) {
	cause := stdlibError("connection refused")
	wrapped := ErrProviderIO.Wrap(cause, "redisScan", cause.Error())

	require.True(t, errors.Is(wrapped, ErrProviderIO))
}

type stdlibError string

func (e stdlibError) Error() string { return string(e) }
