package normalize

import "time"

// Result is the outcome of normalizing one event. Record is nil when the
// event produced nothing to store: unrecognized shapes, cached partials,
// signal updates and tag lists without known tags.
type Result struct {
	Shape  Shape
	Record Record
	Table  string
}

type Normalizer struct {
	merger *Merger
}

func NewNormalizer(merger *Merger) *Normalizer {
	return &Normalizer{merger: merger}
}

// Normalize classifies, extracts and merges one event. On error nothing has
// been cached and no record is returned.
func (n *Normalizer) Normalize(dt DeviceTopic, e RawEvent, now time.Time) (Result, error) {
	shape := Classify(e, dt.Profile)
	res := Result{Shape: shape}

	switch shape {
	case ConnectionStatus:
		entry, err := ExtractConnectionLog(e, now)
		if err != nil {
			return res, err
		}
		res.Record = entry

	case DigitalIOReading:
		rec, err := ExtractDigitalIO(e, now)
		if err != nil {
			return res, err
		}
		res.Record = rec

	case CombinedIOEnvironment:
		io, err := ExtractIO(e)
		if err != nil {
			return res, err
		}
		env, err := ExtractEnvironment(e, now)
		if err != nil {
			return res, err
		}
		res.Record = n.merger.Combine(io, env)

	case SplitIOPartial:
		io, err := ExtractIO(e)
		if err != nil {
			return res, err
		}
		observedAt, err := toTimestamp(e, FieldTime, now)
		if err != nil {
			return res, err
		}
		n.merger.StorePartial(dt.Device, io, observedAt)

	case SplitEnvironmentPartial:
		env, err := ExtractEnvironment(e, now)
		if err != nil {
			return res, err
		}
		res.Record = n.merger.MergeEnvironment(dt.Device, env)

	case TagValueList:
		rec, ok, err := ExtractTagValues(e, dt.Device, now)
		if err != nil {
			return res, err
		}
		if ok {
			res.Record = rec
		}

	case NestedRegisterReport:
		reg, err := extractRegister(e)
		if err != nil {
			return res, err
		}
		carried, err := ExtractSignal(e)
		if err != nil {
			return res, err
		}
		res.Record = n.merger.RegisterReport(reg, carried)

	case SignalInfo:
		sig, err := ExtractSignal(e)
		if err != nil {
			return res, err
		}
		n.merger.StoreSignal(sig)
	}

	if res.Record != nil {
		res.Table, _ = dt.Profile.TableFor(res.Record.Kind())
	}
	return res, nil
}

func (n *Normalizer) CachedDevices() int {
	return n.merger.CachedDevices()
}
