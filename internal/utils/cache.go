package utils

import (
	"sync"
	"time"

	"sensornet-gateway/internal/firmware"
)

// FirmwareKey identifies one stored image.
type FirmwareKey struct {
	Type    uint16
	Version uint16
}

// FirmwareCache is a simple in-memory TTL cache of firmware images.
// It is thread-safe and keeps block requests from hitting the store once per block.
type FirmwareCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[FirmwareKey]entry
}

type entry struct {
	img *firmware.Image
	at  time.Time
}

// NewFirmwareCache creates a new cache with the given TTL. If ttl <= 0, it defaults to 10m.
func NewFirmwareCache(ttl time.Duration) *FirmwareCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FirmwareCache{ttl: ttl, now: time.Now, data: make(map[FirmwareKey]entry, 8)}
}

// Get returns the cached image if it exists and hasn't expired.
func (c *FirmwareCache) Get(key FirmwareKey) (*firmware.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.at) > c.ttl {
		delete(c.data, key)
		return nil, false
	}
	return e.img, true
}

// Set stores the image with the current timestamp.
func (c *FirmwareCache) Set(img *firmware.Image) {
	c.mu.Lock()
	c.data[FirmwareKey{Type: img.Type, Version: img.Version}] = entry{img: img, at: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the cached image for key.
func (c *FirmwareCache) Invalidate(key FirmwareKey) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}
