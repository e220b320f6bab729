package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// AssembleOptions tunes the grouping assembler.
type AssembleOptions struct {
	// TagGroups enables tag_ and category_ groups.
	TagGroups   bool
	VCenterHost string
	Datacenter  string
	RunID       string
	Now         func() time.Time
}

// hostVarsOf builds the variables of one record. Tests replace it to feed the
// serialization repair.
var hostVarsOf = ClassifiedVM.HostVars

// Assemble buckets classified records into groups and builds the document.
// Records sharing a name are disambiguated with a numeric suffix so no host
// silently replaces another.
func Assemble(records []ClassifiedVM, opts AssembleOptions) *Document {
	doc := NewDocument()
	members := map[string][]string{}
	var tagOrder []string

	for _, rec := range records {
		name := uniqueName(doc.HostVars, rec.Name)
		if name != rec.Name {
			zap.S().Named("assembler").Warnf("duplicate VM name %q renamed to %q", rec.Name, name)
			rec.Name = name
		}

		doc.HostVars[name] = hostVarsOf(rec)

		groups := GroupsOf(rec, opts.TagGroups)
		for _, g := range groups {
			if _, ok := members[g]; !ok && !isFixedGroup(g) {
				tagOrder = append(tagOrder, g)
			}
			members[g] = append(members[g], name)
		}
		if len(groups) == 1 {
			members[GroupUngrouped] = append(members[GroupUngrouped], name)
		}
	}

	dropped := ensureSerializable(doc.HostVars)
	if len(dropped) > 0 {
		for g, hosts := range members {
			members[g] = without(hosts, dropped)
		}
	}

	order := append(append([]string{}, fixedGroups...), tagOrder...)
	for _, g := range order {
		hosts := members[g]
		if len(hosts) == 0 {
			continue
		}
		doc.Groups[g] = &Group{Hosts: hosts}
		doc.Order = append(doc.Order, g)
		doc.Children = append(doc.Children, g)
	}

	ungrouped := members[GroupUngrouped]
	if ungrouped == nil {
		ungrouped = []string{}
	}
	doc.Groups[GroupUngrouped] = &Group{Hosts: ungrouped}
	doc.Order = append(doc.Order, GroupUngrouped)
	if len(ungrouped) > 0 {
		doc.Children = append(doc.Children, GroupUngrouped)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	doc.Metadata = &Metadata{
		VCenterHost:   opts.VCenterHost,
		Datacenter:    opts.Datacenter,
		TotalVMs:      len(doc.HostVars),
		GeneratedAt:   now().Format("2006-01-02 15:04:05"),
		GroupsCreated: len(doc.Children),
		RunID:         opts.RunID,
	}

	return doc
}

func isFixedGroup(g string) bool {
	for _, f := range fixedGroups {
		if f == g {
			return true
		}
	}
	return false
}

func uniqueName(existing map[string]HostVars, name string) string {
	if _, taken := existing[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

func without(hosts []string, dropped map[string]bool) []string {
	out := hosts[:0]
	for _, h := range hosts {
		if !dropped[h] {
			out = append(out, h)
		}
	}
	return out
}

// ensureSerializable makes sure every host encodes to JSON. Offending fields
// are repaired or removed; hosts that still fail are deleted from hostVars
// and returned so callers can prune group listings.
func ensureSerializable(hostVars map[string]HostVars) map[string]bool {
	dropped := map[string]bool{}
	if _, err := json.Marshal(hostVars); err == nil {
		return dropped
	}

	logger := zap.S().Named("assembler")
	for name, vars := range hostVars {
		if _, err := json.Marshal(vars); err == nil {
			continue
		}
		if repairHost(vars) {
			logger.Warnf("host %q had unserializable variables, repaired", name)
			continue
		}
		logger.Errorf("host %q cannot be serialized, dropping it from the inventory", name)
		delete(hostVars, name)
		dropped[name] = true
	}
	return dropped
}

func repairHost(vars HostVars) bool {
	for key, value := range vars {
		if _, err := json.Marshal(value); err == nil {
			continue
		}
		if fixed, ok := repairValue(value); ok {
			vars[key] = fixed
			continue
		}
		if isRequired(key) {
			return false
		}
		delete(vars, key)
	}
	_, err := json.Marshal(vars)
	return err == nil
}

func repairValue(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return Sanitize(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0.0, true
		}
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, Sanitize(s))
		}
		return out, true
	}
	return nil, false
}

func isRequired(key string) bool {
	for _, r := range requiredVars {
		if r == key {
			return true
		}
	}
	return false
}
