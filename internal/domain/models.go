// Package domain defines the persistence models for support tickets, their
// AI classifications, and dataset tags. These types are mapped with GORM and
// form the core data layer of the support backend.
package domain

import "time"

// Ticket represents a single customer support request. A ticket is created
// once per intake call; the core never deletes it. Each ticket owns at most
// one Classification and zero or more Tags.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Subject: optional short subject line (derived from the first line of a
//     single-field submission when no explicit subject was given).
//   - Body: required free-form request text.
//   - Answer: original agent answer from the dataset (import provenance only).
//   - OriginalType / OriginalQueue / OriginalPriority: free-text provenance
//     fields carried over from the source dataset.
//   - Language: ISO language code (e.g. "en", "de").
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Ticket struct {
	ID               uint      `json:"id"                gorm:"primaryKey"`
	Subject          *string   `json:"subject"           gorm:"type:varchar(500)"`
	Body             string    `json:"body"              gorm:"type:text;not null"`
	Answer           *string   `json:"-"                 gorm:"type:text"`
	OriginalType     *string   `json:"-"                 gorm:"type:varchar(50)"`
	OriginalQueue    *string   `json:"original_queue"    gorm:"type:varchar(100);index"`
	OriginalPriority *string   `json:"original_priority" gorm:"type:varchar(20)"`
	Language         *string   `json:"language"          gorm:"type:varchar(10)"`
	CreatedAt        time.Time `json:"created_at"        gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Classification is the single AI verdict for this ticket; removed
	// together with the ticket.
	Classification *Classification `json:"classification,omitempty" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Tags are the ordered dataset tags (positions 1–8); removed together
	// with the ticket.
	Tags []TicketTag `json:"tags,omitempty" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Ticket.
func (Ticket) TableName() string { return "tickets" }

// FullText returns the concatenated subject and body used as classifier
// input: subject, a blank line, then body. Tickets without a subject yield
// the body unchanged.
func (t *Ticket) FullText() string {
	if t.Subject != nil && *t.Subject != "" {
		return *t.Subject + "\n\n" + t.Body
	}
	return t.Body
}

// Classification is the AI-generated verdict for a ticket. A ticket has at
// most one classification at any time (enforced by the unique index); once
// written it is only ever replaced as a whole.
//
// Fields:
//   - TicketID: unique foreign key to the classified ticket.
//   - Category: one of "technical", "billing", "general" (DB-enforced).
//   - ConfidenceScore: classifier certainty in [0.0, 1.0].
//   - Summary: optional one-sentence summary (≤150 characters).
//   - ModelName / ModelVersion: which implementation produced the verdict;
//     fallback results carry a "-fallback" suffix.
//   - ProcessingTimeMS: wall-clock duration of the classify call.
type Classification struct {
	ID               uint      `json:"-"                  gorm:"primaryKey"`
	TicketID         uint      `json:"-"                  gorm:"not null;uniqueIndex"`
	Category         string    `json:"category"           gorm:"type:varchar(50);not null;index;check:category IN ('technical','billing','general')"`
	ConfidenceScore  float64   `json:"confidence_score"   gorm:"not null;check:confidence_score >= 0 AND confidence_score <= 1"`
	Summary          *string   `json:"summary"            gorm:"type:text"`
	ModelName        string    `json:"model_name"         gorm:"type:varchar(100);not null"`
	ModelVersion     *string   `json:"model_version,omitempty" gorm:"type:varchar(50)"`
	ProcessingTimeMS *int      `json:"processing_time_ms" gorm:""`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for Classification.
func (Classification) TableName() string { return "classifications" }

// TicketTag is a single dataset tag attached to a ticket. The source schema
// has eight fixed tag slots, so TagPosition ranges 1–8; tags are written once
// during bulk import and are immutable afterwards.
type TicketTag struct {
	ID          uint      `json:"-"            gorm:"primaryKey"`
	TicketID    uint      `json:"-"            gorm:"not null;index"`
	TagPosition int       `json:"tag_position" gorm:"not null;check:tag_position BETWEEN 1 AND 8"`
	TagValue    string    `json:"tag_value"    gorm:"type:varchar(100);not null"`
	CreatedAt   time.Time `json:"-"`
}

// TableName returns the database table name for TicketTag.
func (TicketTag) TableName() string { return "ticket_tags" }
