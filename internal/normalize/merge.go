package normalize

import "time"

// Merger builds canonical records, reading and writing the caches it is
// given. It is the only writer of both caches.
type Merger struct {
	partials *PartialCache
	signals  *SignalCache
}

func NewMerger(partials *PartialCache, signals *SignalCache) *Merger {
	return &Merger{partials: partials, signals: signals}
}

// StorePartial caches an I/O-only reading. No record results from it.
func (m *Merger) StorePartial(deviceID string, io IOFields, observedAt time.Time) {
	m.partials.Update(deviceID, io, observedAt)
}

// MergeEnvironment combines env with the device's cached I/O partial. The
// record carries the environment event's timestamp.
func (m *Merger) MergeEnvironment(deviceID string, env Environment) MergedRecord {
	cached := m.partials.Read(deviceID)
	return MergedRecord{
		IOFields:  cached.IOFields,
		Timestamp: env.Timestamp,
		Temp:      env.Temp,
		Humidity:  env.Humidity,
	}
}

// Combine builds a record from one event carrying both halves.
func (m *Merger) Combine(io IOFields, env Environment) MergedRecord {
	return MergedRecord{
		IOFields:  io,
		Timestamp: env.Timestamp,
		Temp:      env.Temp,
		Humidity:  env.Humidity,
	}
}

// StoreSignal remembers rssi/devaddr for later register reports.
func (m *Merger) StoreSignal(s Signal) {
	m.signals.Update(s)
}

// RegisterReport applies signal values carried by the report itself before
// reading the last-known ones.
func (m *Merger) RegisterReport(reg registerFields, carried Signal) RegisterRecord {
	m.signals.Update(carried)
	sig := m.signals.Read()
	return RegisterRecord{
		Temp:           reg.Temp,
		TempStatus:     reg.TempStatus,
		Humidity:       reg.Humidity,
		HumidityStatus: reg.HumidityStatus,
		RSSI:           sig.RSSI,
		DevAddr:        sig.DevAddr,
		Timestamp:      reg.Timestamp,
	}
}

func (m *Merger) CachedDevices() int {
	return m.partials.Len()
}
