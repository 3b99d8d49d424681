// Package catalog is the static registry of permission codes. Roles and
// temporary grants may only reference codes registered here.
package catalog

import (
	"sort"
	"sync"

	dErrors "wardgate/pkg/domain-errors"
)

// Code names a single authorizable action, e.g. "view_patients".
// Equality is exact-match.
type Code string

func (c Code) String() string { return string(c) }

// Admin is the distinguished override code. A user holding it (via the
// isAdmin flag) satisfies every query; it is treated specially by the
// resolver rather than enumerated in every role.
const Admin Code = "admin"

// Sensitivity tags a permission with its privilege level. It drives the
// approval routing policy and feeds the risk analytics scoring.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "LOW"
	SensitivityMedium   Sensitivity = "MEDIUM"
	SensitivityHigh     Sensitivity = "HIGH"
	SensitivityCritical Sensitivity = "CRITICAL"
)

// Weight returns the numeric contribution of the sensitivity to risk scoring.
func (s Sensitivity) Weight() float64 {
	switch s {
	case SensitivityCritical:
		return 4
	case SensitivityHigh:
		return 3
	case SensitivityMedium:
		return 2
	default:
		return 1
	}
}

// Permission is a registered catalog entry.
type Permission struct {
	Code        Code
	Label       string
	Category    string
	Sensitivity Sensitivity
}

// Catalog is a read-mostly registry of permission codes. Registration
// happens at startup; lookups run on arbitrary request goroutines.
type Catalog struct {
	mu          sync.RWMutex
	permissions map[Code]Permission
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{permissions: make(map[Code]Permission)}
}

// Register adds a permission code with its label, category, and sensitivity.
// Registering the same code twice is a conflict.
func (c *Catalog) Register(code Code, label, category string, sensitivity Sensitivity) error {
	if code == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "permission code cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.permissions[code]; ok {
		return dErrors.New(dErrors.CodeConflict, "permission already registered: "+string(code))
	}
	if sensitivity == "" {
		sensitivity = SensitivityLow
	}
	c.permissions[code] = Permission{
		Code:        code,
		Label:       label,
		Category:    category,
		Sensitivity: sensitivity,
	}
	return nil
}

// Exists reports whether the code is registered.
func (c *Catalog) Exists(code Code) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.permissions[code]
	return ok
}

// Get returns the registered permission for the code.
func (c *Catalog) Get(code Code) (Permission, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.permissions[code]
	return p, ok
}

// Sensitivity returns the sensitivity tag for the code. Unregistered codes
// report LOW; callers are expected to have validated the code first.
func (c *Catalog) Sensitivity(code Code) Sensitivity {
	p, ok := c.Get(code)
	if !ok {
		return SensitivityLow
	}
	return p.Sensitivity
}

// ListByCategory returns all codes in the category, sorted for stable output.
func (c *Catalog) ListByCategory(category string) []Code {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var codes []Code
	for code, p := range c.permissions {
		if p.Category == category {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// All returns every registered permission code, sorted. The resolver uses
// this as the universal set for the admin override.
func (c *Catalog) All() []Code {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]Code, 0, len(c.permissions))
	for code := range c.permissions {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
