package intake

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"intake/internal/store"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// Profile is the applicant identity extracted from a response row, used when
// the job is published as an application.
type Profile struct {
	Name   string
	UserID string
}

// RowProfile pulls applicant name and platform user id from a row. The name
// is title-cased for display; already-capitalized handles are left alone.
func RowProfile(headers, row []string) Profile {
	name := findValue(headers, row, nameHints)
	if name == "" {
		name = findValue(headers, row, handleHints)
	}
	return Profile{
		Name:   titleCaser.String(strings.TrimSpace(name)),
		UserID: strings.TrimSpace(findValue(headers, row, userIDHints)),
	}
}

// SubmittedFields converts a row into labeled answers, dropping blanks so the
// published embed only shows questions the applicant answered.
func SubmittedFields(headers, row []string) []store.Field {
	var fields []store.Field
	for i, header := range headers {
		if i >= len(row) {
			break
		}
		label := strings.TrimSpace(header)
		value := strings.TrimSpace(row[i])
		if label == "" || value == "" {
			continue
		}
		fields = append(fields, store.Field{Label: label, Value: value})
	}
	return fields
}
