package inventory

import "strings"

// Group names emitted by the assembler.
const (
	GroupAll               = "all"
	GroupUngrouped         = "ungrouped"
	GroupVMware            = "vmware_vms"
	GroupPoweredOn         = "powered_on"
	GroupPoweredOff        = "powered_off"
	GroupSuspended         = "suspended"
	GroupWindows           = "windows"
	GroupLinux             = "linux"
	GroupToolsOK           = "tools_ok"
	GroupToolsOutdated     = "tools_outdated"
	GroupToolsNotInstalled = "tools_not_installed"

	TagGroupPrefix      = "tag_"
	CategoryGroupPrefix = "category_"
)

var powerStateGroups = map[string]string{
	"poweredon":  GroupPoweredOn,
	"poweredoff": GroupPoweredOff,
	"suspended":  GroupSuspended,
}

var toolsStatusGroups = map[string]string{
	"toolsok":           GroupToolsOK,
	"toolsold":          GroupToolsOutdated,
	"toolsnotinstalled": GroupToolsNotInstalled,
}

// fixedGroups is the taxonomy in output order. Tag and category groups are
// appended after it in first-seen order, ungrouped comes last.
var fixedGroups = func() []string {
	groups := []string{
		GroupVMware,
		GroupPoweredOn, GroupPoweredOff, GroupSuspended,
		GroupWindows, GroupLinux,
	}
	for _, env := range Environments {
		groups = append(groups, string(env))
	}
	for _, resource := range []string{"cpu", "memory", "disk"} {
		for _, tier := range Tiers {
			groups = append(groups, TierGroup(tier, resource))
		}
	}
	return append(groups, GroupToolsOK, GroupToolsOutdated, GroupToolsNotInstalled)
}()

// TierGroup returns the group name for a tier on a resource axis, e.g. high_cpu.
func TierGroup(tier Tier, resource string) string {
	return string(tier) + "_" + resource
}

func powerStateGroup(state *string) string {
	if state == nil {
		return ""
	}
	return powerStateGroups[strings.ToLower(*state)]
}

func toolsGroup(status *string) string {
	if status == nil {
		return ""
	}
	return toolsStatusGroups[strings.ToLower(*status)]
}

// osGroup assigns at most one OS group; windows wins when both flags are set.
func osGroup(isWindows, isLinux bool) string {
	switch {
	case isWindows:
		return GroupWindows
	case isLinux:
		return GroupLinux
	}
	return ""
}

// GroupsOf returns every group a classified record belongs to, fixed
// taxonomy first. tagGroups toggles the tag_/category_ groups.
func GroupsOf(c ClassifiedVM, tagGroups bool) []string {
	groups := []string{GroupVMware}
	for _, g := range []string{
		powerStateGroup(c.PowerState),
		osGroup(c.IsWindows, c.IsLinux),
		string(c.Environment),
		TierGroup(c.CPUTier, "cpu"),
		TierGroup(c.MemoryTier, "memory"),
		TierGroup(c.DiskTier, "disk"),
		toolsGroup(c.ToolsStatus),
	} {
		if g != "" {
			groups = append(groups, g)
		}
	}

	if !tagGroups {
		return groups
	}

	seen := map[string]bool{}
	for _, t := range c.Tags {
		for _, g := range []string{GroupName(TagGroupPrefix, t.Name), GroupName(CategoryGroupPrefix, t.Category)} {
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}

// GroupsFromHostVars re-derives group membership from a host's variables.
// It agrees with GroupsOf for any host produced by ClassifiedVM.HostVars.
func GroupsFromHostVars(h HostVars, tagGroups bool) []string {
	powerState := h.String(VarPowerState)
	toolsStatus := h.String(VarToolsStatus)
	cpus, _ := h.Int(VarCPUCount)

	c := ClassifiedVM{
		VM: VM{
			Name:        h.String(VarName),
			PowerState:  &powerState,
			ToolsStatus: &toolsStatus,
			Tags:        h.Tags(),
		},
		Environment: Environment(h.String(VarEnvironment)),
		IsWindows:   h.Bool(VarIsWindows),
		IsLinux:     h.Bool(VarIsLinux),
		CPUTier:     CPUTier(cpus),
		MemoryTier:  MemoryTier(h.Float(VarMemoryGB)),
		DiskTier:    DiskTier(h.Float(VarDiskTotalGB)),
	}
	if c.Environment == "" {
		c.Environment = Unknown
	}
	return GroupsOf(c, tagGroups)
}
