package utils

import (
	"testing"
	"time"

	"sensornet-gateway/internal/firmware"
)

func TestFirmwareCacheExpires(t *testing.T) {
	c := NewFirmwareCache(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	img := firmware.NewImage(1, 2, []byte{1})
	c.Set(img)
	key := FirmwareKey{Type: 1, Version: 2}
	if got, ok := c.Get(key); !ok || got != img {
		t.Fatalf("expected cached image")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestFirmwareCacheInvalidate(t *testing.T) {
	c := NewFirmwareCache(0)
	img := firmware.NewImage(3, 1, []byte{1})
	c.Set(img)
	c.Invalidate(FirmwareKey{Type: 3, Version: 1})
	if _, ok := c.Get(FirmwareKey{Type: 3, Version: 1}); ok {
		t.Fatalf("expected entry removed")
	}
	c.Set(img)
	if _, ok := c.Get(FirmwareKey{Type: 3, Version: 1}); !ok {
		t.Fatalf("expected entry after re-set")
	}
}
