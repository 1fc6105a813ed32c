package normalize

import (
	"sync"
	"time"
)

// PartialReading is the cached I/O half of a split reading. A zero
// ObservedAt means nothing has been cached for the device.
type PartialReading struct {
	IOFields
	ObservedAt time.Time
}

// PartialCache holds the last I/O partial per device for the process
// lifetime. Entries are replaced whole and never expire.
type PartialCache struct {
	mu      sync.RWMutex
	entries map[string]PartialReading
}

func NewPartialCache() *PartialCache {
	return &PartialCache{entries: make(map[string]PartialReading)}
}

func (c *PartialCache) Update(deviceID string, fields IOFields, observedAt time.Time) {
	c.mu.Lock()
	c.entries[deviceID] = PartialReading{IOFields: fields, ObservedAt: observedAt}
	c.mu.Unlock()
}

// Read returns the cached reading, or the zero PartialReading if none.
func (c *PartialCache) Read(deviceID string) PartialReading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[deviceID]
}

func (c *PartialCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SignalCache keeps the last rssi and devaddr seen on any topic. The
// auxiliary messages carry no device identifier, so there is one global
// value per field.
type SignalCache struct {
	mu      sync.RWMutex
	rssi    *int64
	devAddr *string
}

func NewSignalCache() *SignalCache {
	return &SignalCache{}
}

// Update replaces only the fields s carries.
func (c *SignalCache) Update(s Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.RSSI != nil {
		v := *s.RSSI
		c.rssi = &v
	}
	if s.DevAddr != nil {
		v := *s.DevAddr
		c.devAddr = &v
	}
}

// Read returns copies so callers cannot mutate cached values.
func (c *SignalCache) Read() Signal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Signal
	if c.rssi != nil {
		v := *c.rssi
		s.RSSI = &v
	}
	if c.devAddr != nil {
		v := *c.devAddr
		s.DevAddr = &v
	}
	return s
}
