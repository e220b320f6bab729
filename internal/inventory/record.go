package inventory

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strings"
)

var (
	// ErrTemplate marks a raw record describing a template rather than a VM.
	ErrTemplate = errors.New("record is a template")
)

const (
	// DefaultTemplatePrefix is the reserved name prefix identifying templates.
	DefaultTemplatePrefix = "template"

	linkLocalPrefix = "fe80"
	uuidNameLength  = 8
)

// Tag is a vCenter tag attached to a VM.
type Tag struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// RawVM is a VM as reported by the virtualization platform. Every nested
// structure is optional; accessors return zero values for missing links.
type RawVM struct {
	Name      string
	Config    *RawConfig
	Summary   *RawSummary
	Runtime   *RawRuntime
	Guest     *RawGuest
	Placement *RawPlacement
	Tags      []Tag
}

type RawConfig struct {
	Template      bool
	UUID          string
	GuestFullName string
	Disks         []RawDisk
}

type RawDisk struct {
	CapacityKB int64
}

type RawSummary struct {
	Template bool
	NumCPU   int32
	MemoryMB int32
}

type RawRuntime struct {
	PowerState string
}

type RawGuest struct {
	GuestFamily string
	HostName    string
	ToolsStatus string
	NICs        []RawNIC
}

type RawNIC struct {
	IPAddresses []string
}

type RawPlacement struct {
	Datacenter string
	Cluster    string
	Folder     string
}

func (r RawVM) config() RawConfig {
	if r.Config == nil {
		return RawConfig{}
	}
	return *r.Config
}

func (r RawVM) summary() RawSummary {
	if r.Summary == nil {
		return RawSummary{}
	}
	return *r.Summary
}

func (r RawVM) runtime() RawRuntime {
	if r.Runtime == nil {
		return RawRuntime{}
	}
	return *r.Runtime
}

func (r RawVM) guest() RawGuest {
	if r.Guest == nil {
		return RawGuest{}
	}
	return *r.Guest
}

func (r RawVM) placement() RawPlacement {
	if r.Placement == nil {
		return RawPlacement{}
	}
	return *r.Placement
}

// VM is the canonical, sanitized form of a RawVM.
type VM struct {
	Name        string
	UUID        *string
	PowerState  *string
	GuestOS     *string
	GuestFamily *string
	Hostname    *string
	ToolsStatus *string
	IPAddresses []string
	PrimaryIP   *string
	CPUCount    int
	MemoryMB    int
	MemoryGB    float64
	DiskTotalGB float64
	Datacenter  *string
	Cluster     *string
	Folder      *string
	Tags        []Tag
}

// NormalizeOptions controls template detection.
type NormalizeOptions struct {
	TemplatePrefix string
}

// Normalize converts one raw record into its canonical form. ordinal is the
// 1-based position of the record in the run and is only used to synthesize a
// name when neither the name nor the UUID survive sanitization.
// The only error returned is ErrTemplate.
func Normalize(raw RawVM, ordinal int, opts NormalizeOptions) (VM, error) {
	prefix := opts.TemplatePrefix
	if prefix == "" {
		prefix = DefaultTemplatePrefix
	}

	cfg := raw.config()
	summary := raw.summary()
	if cfg.Template || summary.Template || strings.HasPrefix(strings.TrimSpace(raw.Name), prefix) {
		return VM{}, ErrTemplate
	}

	guest := raw.guest()
	placement := raw.placement()

	vm := VM{
		UUID:        sanitizePtr(cfg.UUID),
		PowerState:  sanitizePtr(raw.runtime().PowerState),
		GuestOS:     sanitizePtr(cfg.GuestFullName),
		GuestFamily: sanitizePtr(guest.GuestFamily),
		Hostname:    sanitizePtr(guest.HostName),
		ToolsStatus: sanitizePtr(guest.ToolsStatus),
		IPAddresses: collectIPs(guest.NICs),
		CPUCount:    nonNegative(int(summary.NumCPU)),
		MemoryMB:    nonNegative(int(summary.MemoryMB)),
		DiskTotalGB: diskTotalGB(cfg.Disks),
		Datacenter:  sanitizePtr(placement.Datacenter),
		Cluster:     sanitizePtr(placement.Cluster),
		Folder:      sanitizePtr(placement.Folder),
		Tags:        normalizeTags(raw.Tags),
	}
	vm.MemoryGB = round1(float64(vm.MemoryMB) / 1024)
	if len(vm.IPAddresses) > 0 {
		primary := vm.IPAddresses[0]
		vm.PrimaryIP = &primary
	}

	vm.Name = Sanitize(raw.Name)
	if vm.Name == "" {
		vm.Name = fallbackName(vm.UUID, ordinal)
	}

	return vm, nil
}

func fallbackName(uuid *string, ordinal int) string {
	if uuid != nil {
		id := *uuid
		if len(id) > uuidNameLength {
			id = id[:uuidNameLength]
		}
		return "vm_" + id
	}
	return fmt.Sprintf("unknown_vm_%d", ordinal)
}

// collectIPs flattens NIC addresses in first-seen order, dropping empty,
// unparsable and link-local entries. Duplicates are kept.
func collectIPs(nics []RawNIC) []string {
	ips := []string{}
	for _, nic := range nics {
		for _, ip := range nic.IPAddresses {
			ip = strings.TrimSpace(ip)
			if ip == "" || strings.HasPrefix(strings.ToLower(ip), linkLocalPrefix) {
				continue
			}
			addr, err := netip.ParseAddr(ip)
			if err != nil {
				continue
			}
			ips = append(ips, addr.String())
		}
	}
	return ips
}

func diskTotalGB(disks []RawDisk) float64 {
	total := 0.0
	for _, d := range disks {
		if d.CapacityKB <= 0 {
			continue
		}
		total += float64(d.CapacityKB) / 1024 / 1024
	}
	return round1(total)
}

func normalizeTags(tags []Tag) []Tag {
	out := []Tag{}
	for _, t := range tags {
		name := Sanitize(t.Name)
		if name == "" {
			continue
		}
		out = append(out, Tag{
			Name:        name,
			Category:    Sanitize(t.Category),
			Description: Sanitize(t.Description),
		})
	}
	return out
}

func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*10) / 10
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
