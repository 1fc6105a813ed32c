package normalize

import (
	"fmt"
	"strings"
)

// Router maps topics to device families. The first family with a matching
// filter wins, in configuration order.
type Router struct {
	profiles []*Profile
}

func NewRouter(profiles ...*Profile) (*Router, error) {
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate family %s", p.Name)
		}
		seen[p.Name] = true
	}

	kinds := make(map[string]Kind)
	owners := make(map[string]string)
	for _, p := range profiles {
		for k, t := range p.Tables {
			if prev, ok := kinds[t]; ok && prev != k {
				return nil, fmt.Errorf("table %s is used for %s records by family %s and %s records by family %s",
					t, prev, owners[t], k, p.Name)
			}
			kinds[t] = k
			owners[t] = p.Name
		}
	}
	return &Router{profiles: profiles}, nil
}

func (r *Router) Resolve(topic string) (DeviceTopic, bool) {
	for _, p := range r.profiles {
		for _, filter := range p.Topics {
			if MatchTopic(filter, topic) {
				return DeviceTopic{Topic: topic, Device: p.deviceID(topic), Profile: p}, true
			}
		}
	}
	return DeviceTopic{}, false
}

// Subscriptions returns every topic filter once, in configuration order.
func (r *Router) Subscriptions() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range r.profiles {
		for _, f := range p.Topics {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func (r *Router) Profiles() []*Profile {
	return append([]*Profile(nil), r.profiles...)
}

func (r *Router) Profile(name string) (*Profile, bool) {
	for _, p := range r.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Tables returns every configured table with the record kind it stores.
func (r *Router) Tables() map[string]Kind {
	out := make(map[string]Kind)
	for _, p := range r.profiles {
		for k, t := range p.Tables {
			out[t] = k
		}
	}
	return out
}

// MatchTopic reports whether topic matches an MQTT filter with "+" and "#"
// wildcards. Wildcards do not match topics starting with "$".
func MatchTopic(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, level := range fl {
		if level == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if level != "+" && level != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}

func validateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("empty topic filter")
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("invalid topic filter %q: # must be the last level", filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("invalid topic filter %q: + must occupy a whole level", filter)
		}
	}
	return nil
}
