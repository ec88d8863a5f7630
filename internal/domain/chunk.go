package domain

import (
	"fmt"
	"time"
)

// Payload keys shared by every vector index backend. The filterable keys are
// the ones that carry a secondary index.
const (
	FieldRecordID      = "record_id"
	FieldRecordNumber  = "record_number"
	FieldCreatedBy     = "created_by"
	FieldDepartmentID  = "department_id"
	FieldCategory      = "category"
	FieldPriority      = "priority"
	FieldStatus        = "status"
	FieldChunkType     = "chunk_type"
	FieldChunkIndex    = "chunk_index"
	FieldTotalChunks   = "total_chunks"
	FieldCommentID     = "comment_id"
	FieldCommentUserID = "comment_user_id"
	FieldCreatedAt     = "created_at"
	FieldContent       = "content"
)

// IndexedFields lists the payload keys that must have a keyword index.
var IndexedFields = []string{
	FieldRecordID,
	FieldCreatedBy,
	FieldDepartmentID,
	FieldCategory,
	FieldPriority,
	FieldStatus,
	FieldChunkType,
}

type ChunkType string

const (
	ChunkTypeTitle       ChunkType = "title"
	ChunkTypeDescription ChunkType = "description"
	ChunkTypeAISummary   ChunkType = "ai_summary"
	ChunkTypeResolution  ChunkType = "resolution"
	ChunkTypeComment     ChunkType = "comment"
)

// ChunkMetadata is attached to every indexed chunk. CreatedBy and
// DepartmentID are the only fields tenant isolation keys on; an empty
// DepartmentID means the record has no department.
type ChunkMetadata struct {
	RecordID      string    `json:"record_id"`
	RecordNumber  string    `json:"record_number,omitempty"`
	CreatedBy     string    `json:"created_by"`
	DepartmentID  string    `json:"department_id,omitempty"`
	Category      string    `json:"category,omitempty"`
	Priority      string    `json:"priority,omitempty"`
	Status        string    `json:"status,omitempty"`
	ChunkType     ChunkType `json:"chunk_type"`
	ChunkIndex    int       `json:"chunk_index"`
	TotalChunks   int       `json:"total_chunks"`
	CommentID     string    `json:"comment_id,omitempty"`
	CommentUserID string    `json:"comment_user_id,omitempty"`
	CreatedAt     string    `json:"created_at,omitempty"`
}

// Chunk is the unit of indexing.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	ID       string        `json:"id"`
	Score    float32       `json:"score"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Lookup returns the string value stored under a filterable payload key.
func (m ChunkMetadata) Lookup(key string) (string, bool) {
	var v string
	switch key {
	case FieldRecordID:
		v = m.RecordID
	case FieldRecordNumber:
		v = m.RecordNumber
	case FieldCreatedBy:
		v = m.CreatedBy
	case FieldDepartmentID:
		v = m.DepartmentID
	case FieldCategory:
		v = m.Category
	case FieldPriority:
		v = m.Priority
	case FieldStatus:
		v = m.Status
	case FieldChunkType:
		v = string(m.ChunkType)
	case FieldCommentID:
		v = m.CommentID
	case FieldCommentUserID:
		v = m.CommentUserID
	default:
		return "", false
	}
	return v, v != ""
}

// Payload flattens the metadata plus content into the stored point payload.
// Empty optional values are omitted so that a missing department never
// equals any filter value.
func (c Chunk) Payload() map[string]any {
	m := c.Metadata
	payload := map[string]any{
		FieldContent:     c.Content,
		FieldRecordID:    m.RecordID,
		FieldCreatedBy:   m.CreatedBy,
		FieldChunkType:   string(m.ChunkType),
		FieldChunkIndex:  int64(m.ChunkIndex),
		FieldTotalChunks: int64(m.TotalChunks),
	}

	optional := map[string]string{
		FieldRecordNumber:  m.RecordNumber,
		FieldDepartmentID:  m.DepartmentID,
		FieldCategory:      m.Category,
		FieldPriority:      m.Priority,
		FieldStatus:        m.Status,
		FieldCommentID:     m.CommentID,
		FieldCommentUserID: m.CommentUserID,
		FieldCreatedAt:     m.CreatedAt,
	}
	for k, v := range optional {
		if v != "" {
			payload[k] = v
		}
	}

	return payload
}

// ChunkFromPayload rebuilds a chunk from a stored payload.
func ChunkFromPayload(payload map[string]any) Chunk {
	str := func(key string) string {
		switch v := payload[key].(type) {
		case string:
			return v
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
	num := func(key string) int {
		switch v := payload[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return 0
		}
	}

	return Chunk{
		Content: str(FieldContent),
		Metadata: ChunkMetadata{
			RecordID:      str(FieldRecordID),
			RecordNumber:  str(FieldRecordNumber),
			CreatedBy:     str(FieldCreatedBy),
			DepartmentID:  str(FieldDepartmentID),
			Category:      str(FieldCategory),
			Priority:      str(FieldPriority),
			Status:        str(FieldStatus),
			ChunkType:     ChunkType(str(FieldChunkType)),
			ChunkIndex:    num(FieldChunkIndex),
			TotalChunks:   num(FieldTotalChunks),
			CommentID:     str(FieldCommentID),
			CommentUserID: str(FieldCommentUserID),
			CreatedAt:     str(FieldCreatedAt),
		},
	}
}

// FormatTimestamp renders source timestamps the way they are stored in payloads.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
