package engine

import (
	"signalis/internal/domain"
)

// Territorial routing walks the hierarchy commune -> EPCI/departement ->
// authority, then commune -> office commune set -> office. Candidate
// authorities are supplied in stable order; in well-formed data at most one
// covers a commune, but on overlapping data the first match wins so that
// finalization output stays reproducible.

// ResolveAuthority returns the first authority whose district codes contain
// the commune's departement or EPCI code, or nil when none covers it.
func ResolveAuthority(authorities []domain.Authority, commune domain.Commune) *domain.Authority {
	for i := range authorities {
		for _, code := range authorities[i].Districts {
			if code == commune.DepartementCode {
				return &authorities[i]
			}
			if commune.EPCICode != nil && code == *commune.EPCICode {
				return &authorities[i]
			}
		}
	}
	return nil
}

// ResolveOffice returns the first office of the authority whose assigned
// commune set contains the code, or nil when no office claims it.
func ResolveOffice(authority *domain.Authority, communeCode string) *domain.Office {
	if authority == nil {
		return nil
	}
	for i := range authority.Offices {
		for _, code := range authority.Offices[i].Communes {
			if code == communeCode {
				return &authority.Offices[i]
			}
		}
	}
	return nil
}

// RouteReport resolves both levels for a report. A missing commune lookup row
// or an uncovered commune yields (nil, nil): the report is simply not
// routable, which the finalizer reports as an unrouted outcome rather than an
// error.
func RouteReport(rp domain.Report, communes map[string]domain.Commune, authorities []domain.Authority) (*domain.Authority, *domain.Office) {
	commune, ok := communes[rp.CommuneCode]
	if !ok {
		return nil, nil
	}
	authority := ResolveAuthority(authorities, commune)
	if authority == nil {
		return nil, nil
	}
	return authority, ResolveOffice(authority, rp.CommuneCode)
}
