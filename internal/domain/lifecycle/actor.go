package lifecycle

// Actor is the acting user resolved once per request into capability flags,
// so privileged roles are not special-cased by string throughout the
// transition logic.
type Actor struct {
	ID        int64
	Role      string
	CompanyID *int64

	// Admin is the tenant administrator capability: bypasses per-phase
	// role restriction and the assignee-ownership policy, but never
	// tenant isolation.
	Admin bool

	// Platform is the platform-level superuser capability: no tenant,
	// scoped to all tenants.
	Platform bool
}

// CanAdminister reports whether the actor has administrative capability for
// the given company.
func (a *Actor) CanAdminister(companyID int64) bool {
	if a.Platform {
		return true
	}
	return a.Admin && a.CompanyID != nil && *a.CompanyID == companyID
}

// SameCompany reports whether the actor belongs to the given company.
// Platform actors belong to every company.
func (a *Actor) SameCompany(companyID int64) bool {
	if a.Platform {
		return true
	}
	return a.CompanyID != nil && *a.CompanyID == companyID
}
