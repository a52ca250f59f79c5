package ingest

import (
	"time"
)

// Grade is the final outcome of a certification attempt.
type Grade string

const (
	GradePass    Grade = "Pass"
	GradeFail    Grade = "Fail"
	GradePending Grade = "Pending"
)

// UnknownPartner is the sentinel used when a record carries no partner
// affiliation at all.
const UnknownPartner = "UNKNOWN"

// Record is one certification registration as produced by the parser and
// enriched by the fraud scoring passes. Computed fields (ComputedDuration,
// DataError, RiskFlags and the derived display fields) are written only by
// the fraud engine, never by the parser.
type Record struct {
	ID        string `json:"id"`
	BatchID   string `json:"batch_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`

	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	PercentageCompleted int        `json:"percentage_completed"`
	FinalScore          int        `json:"final_score"`
	FinalGrade          Grade      `json:"final_grade"`
	CAStatus            string     `json:"ca_status"`

	PartnerCode string `json:"partner_code"`
	PartnerName string `json:"partner_name"`

	AcceptedMembership bool   `json:"accepted_membership"`
	AcceptedMarketing  bool   `json:"accepted_marketing"`
	WalletAddress      string `json:"wallet_address,omitempty"`

	// ComputedDuration is hours between creation and corrected completion.
	// Nil when the record has no completion date.
	ComputedDuration *float64 `json:"computed_duration,omitempty"`
	DataError        bool     `json:"data_error"`
	RiskFlags        []string `json:"risk_flags,omitempty"`
	IsSuspicious     bool     `json:"is_suspicious"`
	SuspicionReason  string   `json:"suspicion_reason,omitempty"`
}

// ParseError is a structural ingestion failure: the whole file is rejected.
// Individual malformed rows never produce a ParseError.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// NewParseError creates a structural parse error with a display message.
func NewParseError(message string) *ParseError {
	return &ParseError{Message: message}
}
