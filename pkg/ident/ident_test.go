package ident_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noospace/noospace/pkg/ident"
)

func TestUUIDGenerator(t *testing.T) {
	gen := ident.NewUUIDGenerator()

	id := gen.NewID(ident.KindNode)
	assert.True(t, strings.HasPrefix(id, "nod_"))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.NewID(ident.KindSpace)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequentialGenerator(t *testing.T) {
	gen := ident.NewSequentialGenerator()

	assert.Equal(t, "spc_1", gen.NewID(ident.KindSpace))
	assert.Equal(t, "nod_2", gen.NewID(ident.KindNode))
	assert.Equal(t, "edg_3", gen.NewID(ident.KindEdge))
}
