// Package search scans a space's nodes for substring matches. There is no
// persistent index; the scan happens on demand over the node list.
package search

import (
	"strings"

	"github.com/noospace/noospace/pkg/models"
)

const (
	// MaxResults caps how many matches a query returns.
	MaxResults = 8
	// SnippetLength is the longest snippet returned with a match.
	SnippetLength = 120
)

// Result is one search hit, carrying enough for a result list entry.
type Result struct {
	NodeID  string `json:"nodeId"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query matches query case-insensitively against each node's title and
// the text of its markdown blocks, in the nodes' given (table) order.
// The snippet is the first matching markdown block's text, truncated;
// when only the title matched, the snippet falls back to the title.
// An empty query matches nothing.
func Query(query string, nodes []models.Node) []Result {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var results []Result
	for i := range nodes {
		node := &nodes[i]
		titleHit := strings.Contains(strings.ToLower(node.Title), needle)
		snippet := ""
		for _, b := range node.Blocks {
			if b.Kind != models.BlockMarkdown {
				continue
			}
			if strings.Contains(strings.ToLower(b.Text), needle) {
				snippet = truncate(b.Text, SnippetLength)
				break
			}
		}
		if !titleHit && snippet == "" {
			continue
		}
		if snippet == "" {
			snippet = truncate(node.Title, SnippetLength)
		}
		results = append(results, Result{NodeID: node.ID, Title: node.Title, Snippet: snippet})
		if len(results) == MaxResults {
			break
		}
	}
	return results
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
