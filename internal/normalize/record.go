package normalize

import (
	"time"

	"wisegate/internal/constants"
)

// Kind identifies a canonical record type and the column set of the table
// that stores it.
type Kind string

const (
	KindDigitalIO     Kind = constants.KindDigitalIO
	KindMerged        Kind = constants.KindMerged
	KindTagValue      Kind = constants.KindTagValue
	KindRegister      Kind = constants.KindRegister
	KindConnectionLog Kind = constants.KindConnectionLog
)

// Record is an immutable normalized reading. Row returns values in the
// order of Columns(Kind()).
type Record interface {
	Kind() Kind
	Row() []any
	Time() time.Time
}

var columns = map[Kind][]string{
	KindDigitalIO:     {"time", "sequence", "quality", "counter", "di1", "di2", "di3", "di4", "do1", "do2"},
	KindMerged:        {"s", "c", "q", "rssi", "di1", "di2", "di3", "di4", "di5", "di6", "do1", "do2", "timestamp", "temp", "humidity"},
	KindTagValue:      {"device_id", "temp", "hum", "timestamp"},
	KindRegister:      {"temp", "temp_status", "humidity", "humidity_status", "rssi", "devaddr", "timestamp"},
	KindConnectionLog: {"status", "name", "macid", "ipaddr", "timestamp"},
}

// queryable lists the numeric columns a dashboard may ask for, per kind.
var queryable = map[Kind][]string{
	KindDigitalIO: {"sequence", "quality", "counter", "di1", "di2", "di3", "di4", "do1", "do2"},
	KindMerged:    {"s", "c", "q", "rssi", "di1", "di2", "di3", "di4", "di5", "di6", "do1", "do2", "temp", "humidity"},
	KindTagValue:  {"temp", "hum"},
	KindRegister:  {"temp", "temp_status", "humidity", "humidity_status", "rssi"},
}

func Kinds() []Kind {
	return []Kind{KindDigitalIO, KindMerged, KindTagValue, KindRegister, KindConnectionLog}
}

func ValidKind(k Kind) bool {
	_, ok := columns[k]
	return ok
}

// Columns returns a copy of the column list for k.
func Columns(k Kind) []string {
	return append([]string(nil), columns[k]...)
}

func QueryableFields(k Kind) []string {
	return append([]string(nil), queryable[k]...)
}

func IsQueryable(k Kind, field string) bool {
	for _, f := range queryable[k] {
		if f == field {
			return true
		}
	}
	return false
}

func TimeColumn(k Kind) string {
	if k == KindDigitalIO {
		return "time"
	}
	return "timestamp"
}

// IOFields is the digital I/O half of a two-part reading.
type IOFields struct {
	S    int64 `json:"s"`
	C    int64 `json:"c"`
	Q    int64 `json:"q"`
	RSSI int64 `json:"rssi"`
	DI1  bool  `json:"di1"`
	DI2  bool  `json:"di2"`
	DI3  bool  `json:"di3"`
	DI4  bool  `json:"di4"`
	DI5  bool  `json:"di5"`
	DI6  bool  `json:"di6"`
	DO1  bool  `json:"do1"`
	DO2  bool  `json:"do2"`
}

// Environment is the temperature/humidity half of a two-part reading.
type Environment struct {
	Temp      float64
	Humidity  float64
	Timestamp time.Time
}

type DigitalIORecord struct {
	Timestamp time.Time `json:"time"`
	Sequence  int64     `json:"sequence"`
	Quality   int64     `json:"quality"`
	Counter   int64     `json:"counter"`
	DI1       bool      `json:"di1"`
	DI2       bool      `json:"di2"`
	DI3       bool      `json:"di3"`
	DI4       bool      `json:"di4"`
	DO1       bool      `json:"do1"`
	DO2       bool      `json:"do2"`
}

func (r DigitalIORecord) Kind() Kind      { return KindDigitalIO }
func (r DigitalIORecord) Time() time.Time { return r.Timestamp }

func (r DigitalIORecord) Row() []any {
	return []any{r.Timestamp, r.Sequence, r.Quality, r.Counter, r.DI1, r.DI2, r.DI3, r.DI4, r.DO1, r.DO2}
}

// MergedRecord is the I/O+environment reading.
type MergedRecord struct {
	IOFields
	Timestamp time.Time `json:"timestamp"`
	Temp      float64   `json:"temp"`
	Humidity  float64   `json:"humidity"`
}

func (r MergedRecord) Kind() Kind      { return KindMerged }
func (r MergedRecord) Time() time.Time { return r.Timestamp }

func (r MergedRecord) Row() []any {
	return []any{
		r.S, r.C, r.Q, r.RSSI,
		r.DI1, r.DI2, r.DI3, r.DI4, r.DI5, r.DI6,
		r.DO1, r.DO2, r.Timestamp, r.Temp, r.Humidity,
	}
}

// TagValueRecord leaves Temp or Hum nil when the tag list did not carry it.
type TagValueRecord struct {
	DeviceID  string    `json:"device_id"`
	Temp      *float64  `json:"temp"`
	Hum       *float64  `json:"hum"`
	Timestamp time.Time `json:"timestamp"`
}

func (r TagValueRecord) Kind() Kind      { return KindTagValue }
func (r TagValueRecord) Time() time.Time { return r.Timestamp }

func (r TagValueRecord) Row() []any {
	return []any{r.DeviceID, nullableFloat(r.Temp), nullableFloat(r.Hum), r.Timestamp}
}

// RegisterRecord leaves RSSI and DevAddr nil until a signal message has been seen.
type RegisterRecord struct {
	Temp           float64   `json:"temp"`
	TempStatus     int64     `json:"temp_status"`
	Humidity       float64   `json:"humidity"`
	HumidityStatus int64     `json:"humidity_status"`
	RSSI           *int64    `json:"rssi"`
	DevAddr        *string   `json:"devaddr"`
	Timestamp      time.Time `json:"timestamp"`
}

func (r RegisterRecord) Kind() Kind      { return KindRegister }
func (r RegisterRecord) Time() time.Time { return r.Timestamp }

func (r RegisterRecord) Row() []any {
	var rssi, devAddr any
	if r.RSSI != nil {
		rssi = *r.RSSI
	}
	if r.DevAddr != nil {
		devAddr = *r.DevAddr
	}
	return []any{r.Temp, r.TempStatus, r.Humidity, r.HumidityStatus, rssi, devAddr, r.Timestamp}
}

// ConnectionLogEntry is a device up/down event.
type ConnectionLogEntry struct {
	Status    string    `json:"status"`
	Name      string    `json:"name"`
	MacID     string    `json:"macid"`
	IPAddr    string    `json:"ipaddr"`
	Timestamp time.Time `json:"timestamp"`
}

func (r ConnectionLogEntry) Kind() Kind      { return KindConnectionLog }
func (r ConnectionLogEntry) Time() time.Time { return r.Timestamp }

func (r ConnectionLogEntry) Row() []any {
	return []any{r.Status, r.Name, r.MacID, r.IPAddr, r.Timestamp}
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
