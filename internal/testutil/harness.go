package testutil

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteTown encodes every asset as GLB under root/town, keyed by a
// slash-separated path such as "houses/a.glb". It returns the town
// directory.
func WriteTown(t testing.TB, root, town string, assets map[string]*Asset) string {
	t.Helper()
	dir := filepath.Join(root, town)
	for rel, a := range assets {
		WriteFile(t, dir, rel, a.GLB(t))
	}
	return dir
}
