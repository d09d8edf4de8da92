package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 10

// Query is the structured form of a raw search command. It decouples
// the chat input from the index engine requirements.
type Query struct {
	RawInput string // original input from the user
	Terms    string // text to match against message content
	With     string // peer (username or id) scoping the conversation
	Limit    int    // maximum number of hits
}

// ParseQuery extracts command-line style arguments from a raw string.
// Example: /find invoice --with bob --limit 5
func ParseQuery(input string) Query {
	query := Query{RawInput: input, Limit: defaultLimit}

	parts := strings.Fields(input)
	var terms []string
	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			value := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "with":
				query.With = value
			case "limit":
				if limit, err := strconv.Atoi(value); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++
			continue
		}

		// Leading slash-commands are not search terms.
		if !strings.HasPrefix(part, "/") {
			terms = append(terms, part)
		}
	}

	query.Terms = strings.Join(terms, " ")
	return query
}
