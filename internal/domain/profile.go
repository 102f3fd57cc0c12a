package domain

import (
	"sort"
	"strings"
	"time"
)

// DesignationIT marks IT staff. Membership, not equality, decides staff rights.
const DesignationIT = "IT"

// KnownDesignations lists the role labels offered at sign-up.
var KnownDesignations = []string{
	"Doctor",
	"Nurse",
	"Pharmacist",
	"Dispatch",
	"Xpresscheck",
	"Accounts",
	"Customer Care",
	"Claims",
	"CDM",
	DesignationIT,
	"Intern",
}

// KnownBranches lists the site labels offered at sign-up.
var KnownBranches = []string{"LUSAKA", "GA", "JKIA", "EPZ"}

// Profile is the application-level record for an authenticated principal.
// ID equals the account id issued by the authentication provider.
type Profile struct {
	ID           string
	Name         string
	Email        string
	PhoneNumber  *string
	Designations []string
	Branch       string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasDesignation reports tag membership.
func (p *Profile) HasDesignation(tag string) bool {
	if p == nil {
		return false
	}
	for _, d := range p.Designations {
		if d == tag {
			return true
		}
	}
	return false
}

// IsITStaff reports whether the profile carries the IT designation.
func (p *Profile) IsITStaff() bool {
	return p.HasDesignation(DesignationIT)
}

// CanBeAssigned reports whether tickets may be assigned to this profile.
func (p *Profile) CanBeAssigned() bool {
	return p != nil && (p.IsAdmin || p.IsITStaff())
}

// NormalizeDesignations trims, re-cases known labels and removes duplicates
// and blanks. Output is sorted so stored tag sets compare stably.
func NormalizeDesignations(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag := canonicalDesignation(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func canonicalDesignation(tag string) string {
	for _, known := range KnownDesignations {
		if strings.EqualFold(known, tag) {
			return known
		}
	}
	return tag
}

// NormalizeBranch trims and upper-cases a branch label.
func NormalizeBranch(branch string) string {
	return strings.ToUpper(strings.TrimSpace(branch))
}

// RegisterCatalogue extends the known designations and branches. It must run
// before the server starts handling requests.
func RegisterCatalogue(designations, branches []string) {
	for _, d := range designations {
		d = strings.TrimSpace(d)
		if d != "" && !containsFold(KnownDesignations, d) {
			KnownDesignations = append(KnownDesignations, d)
		}
	}
	for _, b := range branches {
		b = NormalizeBranch(b)
		if b != "" && !containsFold(KnownBranches, b) {
			KnownBranches = append(KnownBranches, b)
		}
	}
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
