package models

import (
	"encoding/json"
	"time"
)

// BookingWorkflow tracks delivery of a confirmed booking. One per booking.
type BookingWorkflow struct {
	ID                  string          `json:"id"`
	BookingID           string          `json:"booking_id"`
	Stage               string          `json:"stage"`
	Milestones          []Milestone     `json:"milestones"`
	EnablerChecklist    []ChecklistItem `json:"enabler_checklist"`
	HostChecklist       []ChecklistItem `json:"host_checklist"`
	LiveStatus          string          `json:"live_status"`
	PerformanceScore    float64         `json:"performance_score"`
	PunctualityScore    float64         `json:"punctuality_score"`
	QualityScore        float64         `json:"quality_score"`
	RiskFlags           []string        `json:"risk_flags"`
	Incidents           []string        `json:"incidents"`
	EscrowReleaseStatus string          `json:"escrow_release_status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type Milestone struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
}

// ChecklistItem is a preparation task. Items with TracksProof always carry
// proof_url in JSON, null until proof is uploaded.
type ChecklistItem struct {
	Task        string     `json:"task"`
	Required    bool       `json:"required"`
	Category    string     `json:"category"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	ProofURL    *string    `json:"proof_url,omitempty"`
	TracksProof bool       `json:"-"`
}

type checklistItemFields ChecklistItem

func (c ChecklistItem) MarshalJSON() ([]byte, error) {
	if !c.TracksProof {
		return json.Marshal(checklistItemFields(c))
	}
	return json.Marshal(struct {
		checklistItemFields
		ProofURL *string `json:"proof_url"`
	}{checklistItemFields(c), c.ProofURL})
}

func (c *ChecklistItem) UnmarshalJSON(data []byte) error {
	var fields checklistItemFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, fields.TracksProof = keys["proof_url"]
	*c = ChecklistItem(fields)
	return nil
}
