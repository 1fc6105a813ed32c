package normalize

// Shape is the classification of one RawEvent.
type Shape int

const (
	Unrecognized Shape = iota
	ConnectionStatus
	CombinedIOEnvironment
	SplitIOPartial
	SplitEnvironmentPartial
	TagValueList
	NestedRegisterReport
	// DigitalIOReading is an I/O-only message that is complete on its own.
	DigitalIOReading
	// SignalInfo carries rssi/devaddr for later register reports.
	SignalInfo
)

var shapeNames = map[Shape]string{
	Unrecognized:            "unrecognized",
	ConnectionStatus:        "connection_status",
	CombinedIOEnvironment:   "combined_io_environment",
	SplitIOPartial:          "split_io_partial",
	SplitEnvironmentPartial: "split_environment_partial",
	TagValueList:            "tag_value_list",
	NestedRegisterReport:    "nested_register_report",
	DigitalIOReading:        "digital_io_reading",
	SignalInfo:              "signal_info",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return "unknown"
}

// tableKind is the kind of table the shape writes to, or feeds through a
// cache. Unrecognized has none.
func (s Shape) tableKind() Kind {
	switch s {
	case ConnectionStatus:
		return KindConnectionLog
	case CombinedIOEnvironment, SplitIOPartial, SplitEnvironmentPartial:
		return KindMerged
	case TagValueList:
		return KindTagValue
	case NestedRegisterReport, SignalInfo:
		return KindRegister
	case DigitalIOReading:
		return KindDigitalIO
	default:
		return ""
	}
}
