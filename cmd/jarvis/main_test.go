package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootAcceptsServeFlags(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--addr", ":9000", "--output", "none"}))

	assert.Equal(t, ":9000", root.Flags().Lookup("addr").Value.String())
	assert.Equal(t, "none", root.Flags().Lookup("output").Value.String())

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	// Both commands write to the same options.
	assert.Equal(t, ":9000", serve.Flags().Lookup("addr").Value.String())
}
