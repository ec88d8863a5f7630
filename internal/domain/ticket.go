package domain

import "time"

// Ticket is a source-of-truth record read from the ticket database.
type Ticket struct {
	ID                   string
	TicketNumber         string
	Title                string
	Description          string
	Category             string
	Priority             string
	Status               string
	CreatedBy            string
	AssignedToDepartment string
	AISummary            string
	ResolutionReport     string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Comment is a ticket comment from the ticket database.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Comment   string
	CreatedAt time.Time
}

// BaseMetadata returns the metadata shared by every chunk derived from t.
func (t *Ticket) BaseMetadata() ChunkMetadata {
	return ChunkMetadata{
		RecordID:     t.ID,
		RecordNumber: t.TicketNumber,
		CreatedBy:    t.CreatedBy,
		DepartmentID: t.AssignedToDepartment,
		Category:     t.Category,
		Priority:     t.Priority,
		Status:       t.Status,
		CreatedAt:    FormatTimestamp(t.CreatedAt),
	}
}
