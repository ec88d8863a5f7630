package rag

import "strings"

// broadPatterns mark queries asking for a listing, overview or count rather
// than a specific semantic match.
var broadPatterns = []string{
	// general
	"my tickets", "all tickets", "ticket history", "summarize",
	"list tickets", "show tickets", "what tickets", "tickets i have",
	"my claims", "my submissions", "overview", "all my",
	"old tickets", "past tickets", "previous tickets", "ticket i",
	"tickets that i", "insight", "history of my", "my history",
	// status
	"resolved tickets", "in process", "in_process", "new tickets",
	"open tickets", "closed tickets", "pending tickets",
	"tickets with status", "status of tickets",
	// category and department
	"departments", "categories", "maintenance tickets",
	"safety tickets", "tickets by category", "tickets by department",
	// analytical
	"how many", "count", "total", "statistics", "analysis",
}

// IsBroadQuery reports whether q asks for everything the caller may see.
func IsBroadQuery(q string) bool {
	lower := strings.ToLower(q)
	for _, p := range broadPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
