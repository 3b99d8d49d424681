package analytics

import (
	"time"

	"wardgate/internal/catalog"
)

// Tier buckets a permission's computed risk score.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

// PermissionUsage aggregates check outcomes for one permission over the
// reporting window.
type PermissionUsage struct {
	Permission  catalog.Code `json:"permission"`
	Checks      int          `json:"checks"`
	Granted     int          `json:"granted"`
	Denied      int          `json:"denied"`
	ByRole      int          `json:"byRole"`
	ByTemporary int          `json:"byTemporary"`
	ByAdmin     int          `json:"byAdmin"`
	UniqueUsers int          `json:"uniqueUsers"`
}

// RiskAssessment scores one permission by sensitivity, how often it is
// requested as a temporary grant, and how much of its granted usage comes
// from temporary grants rather than roles.
type RiskAssessment struct {
	Permission     catalog.Code        `json:"permission"`
	Sensitivity    catalog.Sensitivity `json:"sensitivity"`
	Score          float64             `json:"score"`
	Tier           Tier                `json:"tier"`
	GrantRequests  int                 `json:"grantRequests"`
	TemporaryShare float64             `json:"temporaryShare"`
}

// SuggestionKind names the action a suggestion proposes. Suggestions are
// advisory only; nothing here feeds back into resolution.
type SuggestionKind string

const (
	SuggestionPromoteToRole SuggestionKind = "PROMOTE_TO_ROLE"
	SuggestionNarrowRole    SuggestionKind = "NARROW_ROLE"
)

// Suggestion flags a permission worth an administrator's attention.
type Suggestion struct {
	Permission catalog.Code   `json:"permission"`
	Kind       SuggestionKind `json:"kind"`
	Detail     string         `json:"detail"`
}

// Summary totals the reporting window.
type Summary struct {
	WindowStart        time.Time `json:"windowStart"`
	GeneratedAt        time.Time `json:"generatedAt"`
	TotalChecks        int       `json:"totalChecks"`
	TotalGranted       int       `json:"totalGranted"`
	TotalDenied        int       `json:"totalDenied"`
	GrantRequests      int       `json:"grantRequests"`
	PermissionsTracked int       `json:"permissionsTracked"`
}

// Report is the full analytics payload.
type Report struct {
	PermissionUsage         []PermissionUsage `json:"permissionUsage"`
	RiskAssessment          []RiskAssessment  `json:"riskAssessment"`
	OptimizationSuggestions []Suggestion      `json:"optimizationSuggestions"`
	Summary                 Summary           `json:"summary"`
}
