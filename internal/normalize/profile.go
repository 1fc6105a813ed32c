package normalize

import (
	"fmt"
	"strings"

	"wisegate/internal/constants"
)

// Mode selects the classification rules a family uses.
type Mode string

const (
	ModeDigitalIO          Mode = constants.ModeDigitalIO
	ModeSplitIOEnvironment Mode = constants.ModeSplitIOEnvironment
	ModeTagValue           Mode = constants.ModeTagValue
	ModeRegisterReport     Mode = constants.ModeRegisterReport
	ModeAuto               Mode = constants.ModeAuto
)

var modeShapes = map[Mode][]Shape{
	ModeDigitalIO:          {ConnectionStatus, DigitalIOReading},
	ModeSplitIOEnvironment: {ConnectionStatus, CombinedIOEnvironment, SplitIOPartial, SplitEnvironmentPartial},
	ModeTagValue:           {ConnectionStatus, TagValueList},
	ModeRegisterReport:     {ConnectionStatus, NestedRegisterReport, SignalInfo},
	ModeAuto: {
		ConnectionStatus, TagValueList, NestedRegisterReport, CombinedIOEnvironment,
		SplitIOPartial, SplitEnvironmentPartial, SignalInfo,
	},
}

// PrimaryKind is the record kind a family's default table stores.
func (m Mode) PrimaryKind() Kind {
	switch m {
	case ModeDigitalIO:
		return KindDigitalIO
	case ModeTagValue:
		return KindTagValue
	case ModeRegisterReport:
		return KindRegister
	default:
		return KindMerged
	}
}

func (m Mode) Valid() bool {
	_, ok := modeShapes[m]
	return ok
}

// Profile is the static rule set of one device family.
type Profile struct {
	Name       string
	Mode       Mode
	Topics     []string
	Tables     map[Kind]string
	DeviceFrom string

	enabled map[Shape]bool
}

// NewProfile builds a profile. table is stored under the mode's primary
// kind; extra maps further kinds (used by auto mode) to tables.
func NewProfile(name string, mode Mode, topics []string, table, connectionLogTable, deviceFrom string, extra map[Kind]string) (*Profile, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("family %s: unknown mode %q", name, mode)
	}

	tables := make(map[Kind]string, len(extra)+2)
	for k, t := range extra {
		if !ValidKind(k) {
			return nil, fmt.Errorf("family %s: unknown record kind %q", name, k)
		}
		tables[k] = t
	}
	if table != "" {
		tables[mode.PrimaryKind()] = table
	}
	if connectionLogTable != "" {
		tables[KindConnectionLog] = connectionLogTable
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("family %s: no table configured", name)
	}

	for _, f := range topics {
		if err := validateFilter(f); err != nil {
			return nil, fmt.Errorf("family %s: %w", name, err)
		}
	}

	if deviceFrom == "" {
		deviceFrom = constants.DeviceFromFamily
	}
	switch deviceFrom {
	case constants.DeviceFromFamily, constants.DeviceFromTopic, constants.DeviceFromTopicLast:
	default:
		return nil, fmt.Errorf("family %s: unknown device source %q", name, deviceFrom)
	}

	p := &Profile{
		Name:       name,
		Mode:       mode,
		Topics:     append([]string(nil), topics...),
		Tables:     tables,
		DeviceFrom: deviceFrom,
		enabled:    make(map[Shape]bool),
	}

	// A rule whose output has nowhere to go is switched off.
	for _, s := range modeShapes[mode] {
		if _, ok := tables[s.tableKind()]; ok {
			p.enabled[s] = true
		}
	}
	return p, nil
}

func (p *Profile) Allows(s Shape) bool {
	return p.enabled[s]
}

func (p *Profile) TableFor(k Kind) (string, bool) {
	t, ok := p.Tables[k]
	return t, ok
}

func (p *Profile) deviceID(topic string) string {
	switch p.DeviceFrom {
	case constants.DeviceFromTopic:
		return topic
	case constants.DeviceFromTopicLast:
		return topic[strings.LastIndex(topic, "/")+1:]
	default:
		return p.Name
	}
}

// DeviceTopic is the resolved source of one message.
type DeviceTopic struct {
	Topic   string
	Device  string
	Profile *Profile
}
