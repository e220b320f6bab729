package inventory

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Host variable names emitted for every VM.
const (
	VarAnsibleHost    = "ansible_host"
	VarName           = "vm_name"
	VarUUID           = "vm_uuid"
	VarPowerState     = "vm_power_state"
	VarGuestOS        = "vm_guest_os"
	VarGuestFamily    = "vm_guest_family"
	VarCPUCount       = "vm_cpu_count"
	VarMemoryMB       = "vm_memory_mb"
	VarMemoryGB       = "vm_memory_gb"
	VarDiskTotalGB    = "vm_disk_total_gb"
	VarDatacenter     = "vm_datacenter"
	VarCluster        = "vm_cluster"
	VarFolder         = "vm_folder"
	VarIPAddresses    = "vm_ip_addresses"
	VarHostname       = "vm_hostname"
	VarToolsStatus    = "vm_tools_status"
	VarToolsRunning   = "vm_tools_running"
	VarEnvironment    = "vm_environment"
	VarCriticality    = "vm_criticality"
	VarIsWindows      = "vm_is_windows"
	VarIsLinux        = "vm_is_linux"
	VarCPUCategory    = "vm_cpu_category"
	VarMemoryCategory = "vm_memory_category"
	VarDiskCategory   = "vm_disk_category"
	VarTags           = "vm_tags"
)

// allowedVars is the complete set of keys a host may carry. Anything else
// offered to HostVars.Set is dropped.
var allowedVars = map[string]struct{}{
	VarAnsibleHost: {}, VarName: {}, VarUUID: {}, VarPowerState: {}, VarGuestOS: {},
	VarGuestFamily: {}, VarCPUCount: {}, VarMemoryMB: {}, VarMemoryGB: {}, VarDiskTotalGB: {},
	VarDatacenter: {}, VarCluster: {}, VarFolder: {}, VarIPAddresses: {}, VarHostname: {},
	VarToolsStatus: {}, VarToolsRunning: {}, VarEnvironment: {}, VarCriticality: {},
	VarIsWindows: {}, VarIsLinux: {}, VarCPUCategory: {}, VarMemoryCategory: {},
	VarDiskCategory: {}, VarTags: {},
}

// requiredVars cannot be removed while repairing a host for serialization.
var requiredVars = []string{VarName}

// HostVars is the per-host variable map handed to the automation controller.
type HostVars map[string]any

// Set stores value under key if key is part of the allow-list.
func (h HostVars) Set(key string, value any) bool {
	if _, ok := allowedVars[key]; !ok {
		return false
	}
	h[key] = value
	return true
}

// String returns the string stored under key, or "" when absent or not a string.
func (h HostVars) String(key string) string {
	switch v := h[key].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

// Int returns the integer stored under key. Values decoded from JSON arrive
// as float64 and are truncated.
func (h HostVars) Int(key string) (int, bool) {
	switch v := h[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Float returns the number stored under key.
func (h HostVars) Float(key string) float64 {
	switch v := h[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Bool returns the boolean stored under key.
func (h HostVars) Bool(key string) bool {
	v, _ := h[key].(bool)
	return v
}

// Strings returns the string list stored under key, skipping non-string items.
func (h HostVars) Strings(key string) []string {
	switch v := h[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Tags returns the tag list stored under key.
func (h HostVars) Tags() []Tag {
	switch v := h[VarTags].(type) {
	case []Tag:
		return v
	case []any:
		out := make([]Tag, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			t := Tag{}
			t.Name, _ = m["name"].(string)
			t.Category, _ = m["category"].(string)
			t.Description, _ = m["description"].(string)
			out = append(out, t)
		}
		return out
	}
	return nil
}

// HostVars renders the classified record as inventory variables.
func (c ClassifiedVM) HostVars() HostVars {
	h := HostVars{}
	h.Set(VarAnsibleHost, c.PrimaryIP)
	h.Set(VarName, c.Name)
	h.Set(VarUUID, c.UUID)
	h.Set(VarPowerState, c.PowerState)
	h.Set(VarGuestOS, c.GuestOS)
	h.Set(VarGuestFamily, c.GuestFamily)
	h.Set(VarCPUCount, c.CPUCount)
	h.Set(VarMemoryMB, c.MemoryMB)
	h.Set(VarMemoryGB, c.MemoryGB)
	h.Set(VarDiskTotalGB, c.DiskTotalGB)
	h.Set(VarDatacenter, c.Datacenter)
	h.Set(VarCluster, c.Cluster)
	h.Set(VarFolder, c.Folder)
	h.Set(VarIPAddresses, c.IPAddresses)
	h.Set(VarHostname, c.Hostname)
	h.Set(VarToolsStatus, c.ToolsStatus)
	h.Set(VarToolsRunning, toolsGroup(c.ToolsStatus) == GroupToolsOK)
	h.Set(VarEnvironment, string(c.Environment))
	h.Set(VarCriticality, string(c.Criticality))
	h.Set(VarIsWindows, c.IsWindows)
	h.Set(VarIsLinux, c.IsLinux)
	h.Set(VarCPUCategory, string(c.CPUTier))
	h.Set(VarMemoryCategory, string(c.MemoryTier))
	h.Set(VarDiskCategory, string(c.DiskTier))
	h.Set(VarTags, c.Tags)
	return h
}
