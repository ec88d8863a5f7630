package rag

import (
	"fmt"

	"github.com/smartclaim/triage/internal/domain"
)

const generationErrorAnswer = "I apologize, but I encountered an error generating a response. Please try again."

func systemPrompt(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "You are an AI assistant for SmartClaim administrators. You have access to all tickets across all departments."
	case domain.RoleDepartmentManager:
		return "You are an AI assistant for SmartClaim department managers. You help analyze and manage department tickets."
	default:
		return "You are an AI assistant for SmartClaim workers. You help with ticket-related questions."
	}
}

func answerPrompt(query, promptContext string) string {
	return fmt.Sprintf(`Use the following context from the ticket database to answer the user's question.
If the context doesn't contain relevant information, say so and provide general guidance.
Always be helpful, accurate, and concise.

CONTEXT:
%s

USER QUESTION: %s

ASSISTANT:`, promptContext, query)
}

func noContextAnswer(query string, role domain.Role) string {
	q := truncateRunes(query, 50)
	switch role {
	case domain.RoleAdmin:
		return fmt.Sprintf(`I couldn't find any tickets matching %q in the system.

Would you like me to:
- Search with different keywords?
- Provide general guidance on the topic?`, q)
	case domain.RoleDepartmentManager:
		return fmt.Sprintf(`I couldn't find any tickets in your department matching %q.

This could mean:
- No tickets have been assigned to your department yet
- The tickets don't contain information related to your query

Would you like me to help with something else?`, q)
	default:
		return fmt.Sprintf(`I couldn't find any relevant tickets matching your query. This could mean:
- You haven't submitted any tickets yet
- Your existing tickets don't contain information related to %q

Would you like to submit a new ticket or rephrase your question?`, q)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
