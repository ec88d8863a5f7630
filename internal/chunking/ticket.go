package chunking

import (
	"strings"

	"github.com/smartclaim/triage/internal/domain"
)

// TicketChunker turns a ticket and its comments into indexable chunks.
type TicketChunker struct {
	splitter *Splitter
}

func NewTicketChunker(splitter *Splitter) *TicketChunker {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultOverlap)
	}
	return &TicketChunker{splitter: splitter}
}

// ChunkTicket builds the title, description, AI summary and resolution
// chunks of t. ChunkIndex and TotalChunks count within each source field.
func (c *TicketChunker) ChunkTicket(t *domain.Ticket) []domain.Chunk {
	base := t.BaseMetadata()
	var chunks []domain.Chunk

	if title := strings.TrimSpace(t.Title); title != "" {
		status := t.Status
		if status == "" {
			status = "unknown"
		}
		parts := []string{"Ticket " + t.TicketNumber + ": " + title, "Status: " + status}
		if t.Category != "" {
			parts = append(parts, "Category: "+t.Category)
		}
		if t.Priority != "" {
			parts = append(parts, "Priority: "+t.Priority)
		}
		chunks = append(chunks, single(base, domain.ChunkTypeTitle, strings.Join(parts, " | ")))
	}

	chunks = append(chunks, c.split(base, domain.ChunkTypeDescription, "", t.Description)...)

	if summary := strings.TrimSpace(t.AISummary); summary != "" {
		chunks = append(chunks, single(base, domain.ChunkTypeAISummary, "AI Summary: "+summary))
	}

	chunks = append(chunks, c.split(base, domain.ChunkTypeResolution, "Resolution: ", t.ResolutionReport)...)

	return chunks
}

// ChunkComment builds the chunks of one comment, inheriting the parent
// ticket's metadata so that tenant filters apply to comments unchanged.
func (c *TicketChunker) ChunkComment(t *domain.Ticket, comment domain.Comment) []domain.Chunk {
	base := t.BaseMetadata()
	base.CommentID = comment.ID
	base.CommentUserID = comment.UserID
	return c.split(base, domain.ChunkTypeComment, "Comment: ", comment.Comment)
}

// Chunk builds every chunk for a ticket and its comments.
func (c *TicketChunker) Chunk(t *domain.Ticket, comments []domain.Comment) []domain.Chunk {
	chunks := c.ChunkTicket(t)
	for _, comment := range comments {
		chunks = append(chunks, c.ChunkComment(t, comment)...)
	}
	return chunks
}

func (c *TicketChunker) split(base domain.ChunkMetadata, kind domain.ChunkType, label, text string) []domain.Chunk {
	var texts []string
	for _, p := range c.splitter.Split(strings.TrimSpace(text)) {
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, strings.TrimSpace(p.Text))
		}
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, s := range texts {
		meta := base
		meta.ChunkType = kind
		meta.ChunkIndex = i
		meta.TotalChunks = len(texts)
		chunks = append(chunks, domain.Chunk{Content: label + s, Metadata: meta})
	}
	return chunks
}

func single(base domain.ChunkMetadata, kind domain.ChunkType, content string) domain.Chunk {
	base.ChunkType = kind
	base.ChunkIndex = 0
	base.TotalChunks = 1
	return domain.Chunk{Content: content, Metadata: base}
}
