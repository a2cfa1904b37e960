package client

// InvestigationPatch carries the editable investigation fields. Only fields
// present (non-nil) are sent, matching the backend's partial-update PUT.
type InvestigationPatch struct {
	FinancialReport   *string `json:"financialReport,omitempty"`
	LegalReport       *string `json:"legalReport,omitempty"`
	PatrimonialReport *string `json:"patrimonialReport,omitempty"`
}

// InvestigationFilters narrows investigation list queries. Zero values mean
// no filtering on that attribute.
type InvestigationFilters struct {
	Status    string
	CreatorID int64
	CaseID    int64
}

// createInvestigationPayload is the wire shape for investigation creation.
// The backend rejects nested objects; the case is referenced by id only.
type createInvestigationPayload struct {
	CaseID            int64   `json:"caseId"`
	CreatorID         *int64  `json:"creatorId,omitempty"`
	FunctionalStatus  string  `json:"functionalStatus"`
	IsValidated       bool    `json:"isValidated"`
	FinancialReport   *string `json:"financialReport,omitempty"`
	LegalReport       *string `json:"legalReport,omitempty"`
	PatrimonialReport *string `json:"patrimonialReport,omitempty"`
}

// createRecordPayload is the wire shape for validation record creation.
// No creator id: the backend derives it from the referenced investigation.
type createRecordPayload struct {
	Investigation recordInvestigationRef `json:"investigation"`
	Status        string                 `json:"status"`
}

type recordInvestigationRef struct {
	ID int64 `json:"id"`
}
