package repo

import (
	"context"
	"database/sql"

	"signalis/internal/domain"
)

// Territorial reference data is maintained externally and consumed read-only
// by the routing engine; the insert functions below exist for seeding.

func (r Repo) InsertCommune(ctx context.Context, c domain.Commune) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO communes(code_insee,name,departement_code,epci_code) VALUES (?,?,?,?)
ON CONFLICT(code_insee) DO UPDATE SET name=excluded.name, departement_code=excluded.departement_code, epci_code=excluded.epci_code`,
		c.CodeINSEE, c.Name, c.DepartementCode, nullableStringPtr(c.EPCICode))
	return err
}

func (r Repo) GetCommune(ctx context.Context, codeINSEE string) (domain.Commune, error) {
	var c domain.Commune
	var epci sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT code_insee,name,departement_code,epci_code FROM communes WHERE code_insee=?`, codeINSEE).
		Scan(&c.CodeINSEE, &c.Name, &c.DepartementCode, &epci)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.EPCICode = ptrFromNull(epci)
	return c, err
}

// GetCommunes fetches lookup rows for a set of INSEE codes, keyed by code.
// Unknown codes are absent from the map.
func (r Repo) GetCommunes(ctx context.Context, codes []string) (map[string]domain.Commune, error) {
	res := map[string]domain.Commune{}
	for _, code := range codes {
		if _, ok := res[code]; ok {
			continue
		}
		c, err := r.GetCommune(ctx, code)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		res[code] = c
	}
	return res, nil
}

func (r Repo) InsertAuthority(ctx context.Context, a domain.Authority) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO authorities(id,name,auto_assign,created_at) VALUES (?,?,?,?)`,
		a.ID, a.Name, a.AutoAssign, a.CreatedAt)
	if err != nil {
		return err
	}
	for _, code := range a.Districts {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO authority_districts(authority_id,code) VALUES (?,?)`, a.ID, code); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) InsertOffice(ctx context.Context, o domain.Office) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO offices(id,authority_id,name,created_at) VALUES (?,?,?,?)`,
		o.ID, o.AuthorityID, o.Name, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, code := range o.Communes {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO office_communes(office_id,commune_code) VALUES (?,?)`, o.ID, code); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetAuthority(ctx context.Context, id string) (domain.Authority, error) {
	var a domain.Authority
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,auto_assign,created_at FROM authorities WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &a.AutoAssign, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// ListAuthoritiesWithCoverage returns all authorities preloaded with their
// district codes, offices and office commune sets. Order is stable
// (created_at, id) so routing stays deterministic even over overlapping
// coverage data.
func (r Repo) ListAuthoritiesWithCoverage(ctx context.Context) ([]domain.Authority, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,auto_assign,created_at FROM authorities ORDER BY created_at,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var authorities []domain.Authority
	for rows.Next() {
		var a domain.Authority
		if err := rows.Scan(&a.ID, &a.Name, &a.AutoAssign, &a.CreatedAt); err != nil {
			return nil, err
		}
		authorities = append(authorities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range authorities {
		districts, err := r.listAuthorityDistricts(ctx, authorities[i].ID)
		if err != nil {
			return nil, err
		}
		authorities[i].Districts = districts
		offices, err := r.listOfficesWithCommunes(ctx, authorities[i].ID)
		if err != nil {
			return nil, err
		}
		authorities[i].Offices = offices
	}
	return authorities, nil
}

func (r Repo) listAuthorityDistricts(ctx context.Context, authorityID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT code FROM authority_districts WHERE authority_id=? ORDER BY code`, authorityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r Repo) listOfficesWithCommunes(ctx context.Context, authorityID string) ([]domain.Office, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,authority_id,name,created_at FROM offices WHERE authority_id=? ORDER BY created_at,id`, authorityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var offices []domain.Office
	for rows.Next() {
		var o domain.Office
		if err := rows.Scan(&o.ID, &o.AuthorityID, &o.Name, &o.CreatedAt); err != nil {
			return nil, err
		}
		offices = append(offices, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range offices {
		crows, err := r.DB.QueryContext(ctx, `SELECT commune_code FROM office_communes WHERE office_id=? ORDER BY commune_code`, offices[i].ID)
		if err != nil {
			return nil, err
		}
		var codes []string
		for crows.Next() {
			var code string
			if err := crows.Scan(&code); err != nil {
				crows.Close()
				return nil, err
			}
			codes = append(codes, code)
		}
		if err := crows.Err(); err != nil {
			crows.Close()
			return nil, err
		}
		crows.Close()
		offices[i].Communes = codes
	}
	return offices, nil
}
