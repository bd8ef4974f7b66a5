package audio

import "sync"

// Chunker coalesces arbitrarily sized audio frames into fixed-size chunks.
// WebSocket clients often send very small frames (telephony media arrives in
// 20ms packets); forwarding each one separately wastes a message per packet
// on the engine connection.
type Chunker struct {
	mu        sync.Mutex
	chunkSize int
	pending   []byte
}

// NewChunker returns a chunker emitting chunks of chunkSize bytes.
func NewChunker(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 3200 // 100ms of 16kHz mono 16-bit PCM
	}
	return &Chunker{chunkSize: chunkSize}
}

// Write appends a frame and returns every complete chunk now available, in
// order. Leftover bytes stay pending for the next frame.
func (c *Chunker) Write(frame []byte) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, frame...)

	var chunks [][]byte
	for len(c.pending) >= c.chunkSize {
		chunk := make([]byte, c.chunkSize)
		copy(chunk, c.pending[:c.chunkSize])
		chunks = append(chunks, chunk)
		c.pending = c.pending[c.chunkSize:]
	}
	return chunks
}

// Flush returns any pending partial chunk and resets the chunker. Called when
// a session ends so trailing audio is not lost.
func (c *Chunker) Flush() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	rest := c.pending
	c.pending = nil
	return rest
}

// Pending returns the number of buffered bytes not yet emitted.
func (c *Chunker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
