package domain

type Collectivity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Siren     string `json:"siren,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Authority is a receiving tax office (DDFIP). Coverage is expressed as
// district codes: the departement and EPCI codes it has jurisdiction over.
type Authority struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AutoAssign bool     `json:"auto_assign"`
	Districts  []string `json:"districts,omitempty"`
	Offices    []Office `json:"offices,omitempty"`
	CreatedAt  string   `json:"created_at" format:"date-time"`
}

// Office is a desk within an authority with an assigned set of communes.
type Office struct {
	ID          string   `json:"id"`
	AuthorityID string   `json:"authority_id"`
	Name        string   `json:"name"`
	Communes    []string `json:"communes,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

// Commune is a read-only territorial lookup row linking an INSEE code to its
// EPCI and departement.
type Commune struct {
	CodeINSEE       string  `json:"code_insee"`
	Name            string  `json:"name"`
	DepartementCode string  `json:"departement_code"`
	EPCICode        *string `json:"epci_code,omitempty"`
}

type Report struct {
	ID             string  `json:"id"`
	CollectivityID string  `json:"collectivity_id"`
	PublisherID    *string `json:"publisher_id,omitempty"`
	CommuneCode    string  `json:"commune_code"`
	Anomaly        string  `json:"anomaly,omitempty"`
	Completed      bool    `json:"completed"`
	Sandbox        bool    `json:"sandbox"`
	TransmissionID *string `json:"transmission_id,omitempty"`
	PackageID      *string `json:"package_id,omitempty"`
	AuthorityID    *string `json:"authority_id,omitempty"`
	OfficeID       *string `json:"office_id,omitempty"`
	Reference      *string `json:"reference,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	TransmittedAt  *string `json:"transmitted_at,omitempty" format:"date-time"`
	AssignedAt     *string `json:"assigned_at,omitempty" format:"date-time"`
	ReturnedAt     *string `json:"returned_at,omitempty" format:"date-time"`
	ApprovedAt     *string `json:"approved_at,omitempty" format:"date-time"`
	RejectedAt     *string `json:"rejected_at,omitempty" format:"date-time"`
	DebatedAt      *string `json:"debated_at,omitempty" format:"date-time"`
	DiscardedAt    *string `json:"discarded_at,omitempty" format:"date-time"`
}

// WebOrigin reports whether the report was filed through the web UI rather
// than the publisher API.
func (r *Report) WebOrigin() bool {
	return r.PublisherID == nil
}

// Transmitted reports whether the report has been shipped to an authority.
// Sandbox runs package reports without transmitting them, so both conditions
// are required. The sandbox flag is copied from the package at packaging time
// and never changes afterward.
func (r *Report) Transmitted() bool {
	return r.PackageID != nil && !r.Sandbox
}

func (r *Report) Delivered() bool {
	return r.Transmitted() && r.DiscardedAt == nil
}

// Pending reports whether the report is delivered and awaiting a decision.
func (r *Report) Pending() bool {
	return r.Delivered() && r.ApprovedAt == nil && r.RejectedAt == nil && r.DebatedAt == nil
}

func (r *Report) Approved() bool { return r.ApprovedAt != nil }
func (r *Report) Rejected() bool { return r.RejectedAt != nil }
func (r *Report) Debated() bool  { return r.DebatedAt != nil }

// Approve records the approval decision. Re-approving an approved report is a
// no-op; approval and rejection are mutually exclusive outcomes so the other
// decision timestamps are cleared.
func (r *Report) Approve(ts string) bool {
	if r.ApprovedAt != nil {
		return true
	}
	r.ApprovedAt = &ts
	r.RejectedAt = nil
	r.DebatedAt = nil
	return true
}

func (r *Report) Reject(ts string) bool {
	if r.RejectedAt != nil {
		return true
	}
	r.RejectedAt = &ts
	r.ApprovedAt = nil
	r.DebatedAt = nil
	return true
}

// Debate marks the report as under discussion. Only valid from the undecided
// state: once approved or rejected the call fails without mutating anything.
func (r *Report) Debate(ts string) bool {
	if r.DebatedAt != nil {
		return true
	}
	if r.ApprovedAt != nil || r.RejectedAt != nil {
		return false
	}
	r.DebatedAt = &ts
	return true
}

type Transmission struct {
	ID             string  `json:"id"`
	CollectivityID string  `json:"collectivity_id"`
	PublisherID    *string `json:"publisher_id,omitempty"`
	Sandbox        bool    `json:"sandbox"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	CompletedAt    *string `json:"completed_at,omitempty" format:"date-time"`
}

// Completed reports whether the transmission has been finalized. A completed
// transmission is terminal: its pool can no longer be mutated.
func (t *Transmission) Completed() bool {
	return t.CompletedAt != nil
}

type Package struct {
	ID             string  `json:"id"`
	CollectivityID string  `json:"collectivity_id"`
	TransmissionID string  `json:"transmission_id"`
	AuthorityID    string  `json:"authority_id"`
	Reference      string  `json:"reference"`
	Sandbox        bool    `json:"sandbox"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	AssignedAt     *string `json:"assigned_at,omitempty" format:"date-time"`
	ReturnedAt     *string `json:"returned_at,omitempty" format:"date-time"`
	ApprovedAt     *string `json:"approved_at,omitempty" format:"date-time"`
	RejectedAt     *string `json:"rejected_at,omitempty" format:"date-time"`
	DebatedAt      *string `json:"debated_at,omitempty" format:"date-time"`
}

// Transmitted reports whether the package was really shipped; sandbox runs
// exercise packaging without transmitting.
func (p *Package) Transmitted() bool {
	return !p.Sandbox
}

func (p *Package) Assigned() bool   { return p.AssignedAt != nil }
func (p *Package) Returned() bool   { return p.ReturnedAt != nil }
func (p *Package) Unresolved() bool { return p.AssignedAt == nil && p.ReturnedAt == nil }

// Assign accepts the package into the authority's workload. Idempotent on an
// already-assigned package; clears a previous return.
func (p *Package) Assign(ts string) bool {
	if p.AssignedAt != nil {
		return true
	}
	p.AssignedAt = &ts
	p.ReturnedAt = nil
	return true
}

// Return sends the package back to the collectivity. Idempotent; clears a
// previous assignment.
func (p *Package) Return(ts string) bool {
	if p.ReturnedAt != nil {
		return true
	}
	p.ReturnedAt = &ts
	p.AssignedAt = nil
	return true
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
