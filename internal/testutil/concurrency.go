package testutil

import (
	"os"
	"sync"
	"time"
)

// ReadProbe wraps os.ReadFile and records how many reads were in flight at
// once. Each read is held for Delay so that overlapping reads are observable.
type ReadProbe struct {
	Delay time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
	reads    []string
}

// ReadFile is a drop-in replacement for gltf.Loader.ReadFile.
func (p *ReadProbe) ReadFile(name string) ([]byte, error) {
	p.mu.Lock()
	p.inFlight++
	p.peak = max(p.peak, p.inFlight)
	p.reads = append(p.reads, name)
	p.mu.Unlock()

	time.Sleep(p.Delay)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return os.ReadFile(name)
}

// Peak returns the highest number of concurrent reads observed.
func (p *ReadProbe) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// Reads returns how many reads were made.
func (p *ReadProbe) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reads)
}
