package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Metadata describes the run that produced a document.
type Metadata struct {
	VCenterHost   string `json:"vcenter_host"`
	Datacenter    string `json:"datacenter"`
	TotalVMs      int    `json:"total_vms"`
	GeneratedAt   string `json:"generated_at"`
	GroupsCreated int    `json:"groups_created"`
	RunID         string `json:"run_id"`
}

// Group is a flat host group of the inventory.
type Group struct {
	Hosts []string `json:"hosts"`
}

// Document is the inventory handed to the automation controller:
// _meta.hostvars, one key per group and all.children.
type Document struct {
	HostVars map[string]HostVars
	Groups   map[string]*Group
	// Order holds the group names in output order.
	Order    []string
	Children []string
	Metadata *Metadata
}

// NewDocument returns an empty document that still satisfies the
// controller's contract.
func NewDocument() *Document {
	return &Document{
		HostVars: map[string]HostVars{},
		Groups:   map[string]*Group{},
		Children: []string{},
	}
}

// Host returns the variables of one host, or an empty map when absent.
func (d *Document) Host(name string) HostVars {
	if h, ok := d.HostVars[name]; ok {
		return h
	}
	return HostVars{}
}

// Names returns the host names in lexical order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.HostVars))
	for name := range d.HostVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type meta struct {
	HostVars map[string]HostVars `json:"hostvars"`
	Metadata *Metadata           `json:"inventory_metadata,omitempty"`
}

type children struct {
	Children []string `json:"children"`
}

// MarshalJSON writes _meta, all and then every group in Order.
func (d *Document) MarshalJSON() ([]byte, error) {
	hostVars := d.HostVars
	if hostVars == nil {
		hostVars = map[string]HostVars{}
	}
	kids := d.Children
	if kids == nil {
		kids = []string{}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeKey(&buf, "_meta", meta{HostVars: hostVars, Metadata: d.Metadata}); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeKey(&buf, GroupAll, children{Children: kids}); err != nil {
		return nil, err
	}
	for _, name := range d.Order {
		g, ok := d.Groups[name]
		if !ok {
			continue
		}
		hosts := g.Hosts
		if hosts == nil {
			hosts = []string{}
		}
		buf.WriteByte(',')
		if err := writeKey(&buf, name, Group{Hosts: hosts}); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON reads a document previously written by MarshalJSON or by any
// other dynamic inventory following the same contract.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = *NewDocument()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		switch key {
		case "_meta":
			var m meta
			if err := json.Unmarshal(value, &m); err != nil {
				return fmt.Errorf("failed to decode _meta: %w", err)
			}
			if m.HostVars != nil {
				d.HostVars = m.HostVars
			}
			d.Metadata = m.Metadata
		case GroupAll:
			var c children
			if err := json.Unmarshal(value, &c); err != nil {
				return fmt.Errorf("failed to decode all: %w", err)
			}
			if c.Children != nil {
				d.Children = c.Children
			}
		default:
			var g Group
			if err := json.Unmarshal(value, &g); err != nil {
				return fmt.Errorf("failed to decode group %q: %w", key, err)
			}
			d.Groups[key] = &g
			d.Order = append(d.Order, key)
		}
	}
	return nil
}
