package normalize

// Field catalogue shared by the device families.
const (
	FieldStatus    = "status"
	FieldMacID     = "macid"
	FieldTagList   = "d"
	FieldTagTime   = "ts"
	FieldTime      = "t"
	FieldTemp      = "p1v00r0000x00"
	FieldHumidity  = "p1v00r0000x01"
	FieldRSSI      = "rssi"
	FieldDevAddr   = "devaddr"
	registerTemp   = "RtuRegister0-0"
	registerHumid  = "RtuRegister0-1"
	registerDevice = "Device"
)

var (
	ioFields  = []string{"di1", "di2", "di3", "di4", "di5", "di6", "do1", "do2"}
	envFields = []string{FieldTemp, FieldHumidity}
)

type rule struct {
	shape Shape
	match func(RawEvent) bool
}

// rules are evaluated in order; the first enabled match wins. Rules after
// CombinedIOEnvironment only see events it did not claim, so "only I/O"
// and "only environment" reduce to presence checks.
var rules = []rule{
	{ConnectionStatus, func(e RawEvent) bool { return e.Has(FieldStatus) && e.Has(FieldMacID) }},
	{TagValueList, isTagValueList},
	{NestedRegisterReport, isRegisterReport},
	{CombinedIOEnvironment, func(e RawEvent) bool { return e.hasAny(ioFields) && e.hasAny(envFields) }},
	{DigitalIOReading, func(e RawEvent) bool { return e.hasAny(ioFields) }},
	{SplitIOPartial, func(e RawEvent) bool { return e.hasAny(ioFields) && !e.hasAny(envFields) }},
	{SplitEnvironmentPartial, func(e RawEvent) bool { return e.hasAny(envFields) && !e.hasAny(ioFields) }},
	{SignalInfo, func(e RawEvent) bool { return e.Has(FieldRSSI) || e.Has(FieldDevAddr) }},
}

// Classify is a pure function of the event and the family rule set.
func Classify(e RawEvent, p *Profile) Shape {
	for _, r := range rules {
		if p.Allows(r.shape) && r.match(e) {
			return r.shape
		}
	}
	return Unrecognized
}

func isTagValueList(e RawEvent) bool {
	_, ok := e[FieldTagList].([]any)
	return ok && e.Has(FieldTagTime)
}

// isRegisterReport requires every nested key, not just the top-level objects.
func isRegisterReport(e RawEvent) bool {
	temp, ok := e.Object(registerTemp)
	if !ok || !temp.Has("Data") {
		return false
	}
	humid, ok := e.Object(registerHumid)
	if !ok || !humid.Has("Data") {
		return false
	}
	device, ok := e.Object(registerDevice)
	return ok && device.Has("Time")
}
