package inventory

import "strings"

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Testing     Environment = "testing"
	Staging     Environment = "staging"
	Unknown     Environment = "unknown"
)

type Criticality string

const (
	CriticalityHigh   Criticality = "high"
	CriticalityMedium Criticality = "medium"
	CriticalityLow    Criticality = "low"
)

type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierMinimal Tier = "minimal"
)

// Tiers lists every tier value from highest to lowest.
var Tiers = []Tier{TierHigh, TierMedium, TierLow, TierMinimal}

// Environments lists every environment value, unknown last.
var Environments = []Environment{Production, Development, Testing, Staging, Unknown}

// ClassifiedVM is a canonical VM plus the labels derived from it.
type ClassifiedVM struct {
	VM
	Environment Environment
	Criticality Criticality
	IsWindows   bool
	IsLinux     bool
	CPUTier     Tier
	MemoryTier  Tier
	DiskTier    Tier
}

type environmentRule struct {
	substrings []string
	env        Environment
}

// evaluated in order, first match wins
var environmentRules = []environmentRule{
	{substrings: []string{"prod"}, env: Production},
	{substrings: []string{"dev"}, env: Development},
	{substrings: []string{"test"}, env: Testing},
	{substrings: []string{"stg"}, env: Staging},
}

var criticalityByEnvironment = map[Environment]Criticality{
	Production: CriticalityHigh,
	Testing:    CriticalityMedium,
	Staging:    CriticalityMedium,
}

var (
	windowsMarkers = []string{"windows"}
	linuxMarkers   = []string{"linux", "ubuntu", "centos", "red hat", "suse", "debian"}
)

type threshold struct {
	min  float64
	tier Tier
}

// lower bounds are inclusive; anything below the last entry is minimal
var (
	cpuThresholds = []threshold{
		{min: 8, tier: TierHigh},
		{min: 4, tier: TierMedium},
		{min: 0, tier: TierLow},
	}
	memoryThresholds = []threshold{
		{min: 16, tier: TierHigh},
		{min: 8, tier: TierMedium},
		{min: 4, tier: TierLow},
	}
	diskThresholds = []threshold{
		{min: 1000, tier: TierHigh},
		{min: 500, tier: TierMedium},
		{min: 100, tier: TierLow},
	}
)

// Classify derives environment, criticality, OS family and resource tiers.
func Classify(vm VM) ClassifiedVM {
	guestOS := ""
	if vm.GuestOS != nil {
		guestOS = strings.ToLower(*vm.GuestOS)
	}

	env := EnvironmentOf(vm.Name)
	return ClassifiedVM{
		VM:          vm,
		Environment: env,
		Criticality: CriticalityOf(env),
		IsWindows:   containsAny(guestOS, windowsMarkers),
		IsLinux:     containsAny(guestOS, linuxMarkers),
		CPUTier:     tierOf(float64(vm.CPUCount), cpuThresholds),
		MemoryTier:  tierOf(vm.MemoryGB, memoryThresholds),
		DiskTier:    tierOf(vm.DiskTotalGB, diskThresholds),
	}
}

func EnvironmentOf(name string) Environment {
	lower := strings.ToLower(name)
	for _, rule := range environmentRules {
		if containsAny(lower, rule.substrings) {
			return rule.env
		}
	}
	return Unknown
}

func CriticalityOf(env Environment) Criticality {
	if c, ok := criticalityByEnvironment[env]; ok {
		return c
	}
	return CriticalityLow
}

// CPUTier, MemoryTier and DiskTier apply the tier tables to bare numbers.
func CPUTier(cpus int) Tier           { return tierOf(float64(cpus), cpuThresholds) }
func MemoryTier(memoryGB float64) Tier { return tierOf(memoryGB, memoryThresholds) }
func DiskTier(diskGB float64) Tier     { return tierOf(diskGB, diskThresholds) }

func tierOf(v float64, table []threshold) Tier {
	for _, t := range table {
		if v >= t.min {
			return t.tier
		}
	}
	return TierMinimal
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
