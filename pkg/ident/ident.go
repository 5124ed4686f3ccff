// Package ident generates the collision-resistant string identifiers used
// by every persisted entity. Identifiers are globally unique across spaces,
// which keeps import remapping simple.
package ident

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind prefixes make identifiers self-describing in logs and exports.
const (
	KindSpace = "spc"
	KindNode  = "nod"
	KindEdge  = "edg"
)

// Generator produces unique identifiers for a given entity kind.
type Generator interface {
	NewID(kind string) string
}

// UUIDGenerator is the default generator, backed by random UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator returns the default UUID-backed generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a fresh identifier of the form "<kind>_<uuid>".
func (g *UUIDGenerator) NewID(kind string) string {
	return fmt.Sprintf("%s_%s", kind, uuid.NewString())
}

// SequentialGenerator produces deterministic identifiers for tests.
type SequentialGenerator struct {
	counter uint64
}

// NewSequentialGenerator returns a generator counting up from 1.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{}
}

// NewID returns "<kind>_<n>" with a process-unique, monotonically
// increasing n.
func (g *SequentialGenerator) NewID(kind string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s_%d", kind, n)
}
