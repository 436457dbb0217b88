package server

// Request payloads

type CreateCollectivityRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Siren string `json:"siren,omitempty"`
}

type CreateReportRequest struct {
	ID             string `json:"id,omitempty"`
	CollectivityID string `json:"collectivity_id"`
	PublisherID    string `json:"publisher_id,omitempty"`
	CommuneCode    string `json:"commune_code"`
	Anomaly        string `json:"anomaly,omitempty"`
	Completed      bool   `json:"completed,omitempty"`
}

type CreateTransmissionRequest struct {
	CollectivityID string `json:"collectivity_id"`
	PublisherID    string `json:"publisher_id,omitempty"`
	Sandbox        *bool  `json:"sandbox,omitempty"`
}

type PoolChangeRequest struct {
	ReportIDs []string `json:"report_ids"`
}

type CreateAuthorityRequest struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name"`
	AutoAssign bool     `json:"auto_assign,omitempty"`
	Districts  []string `json:"districts,omitempty"`
}

type CreateOfficeRequest struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Communes []string `json:"communes,omitempty"`
}

type UpsertCommuneRequest struct {
	CodeINSEE       string  `json:"code_insee"`
	Name            string  `json:"name"`
	DepartementCode string  `json:"departement_code"`
	EPCICode        *string `json:"epci_code,omitempty"`
}
