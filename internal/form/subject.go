package form

import (
	"strings"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

// Subject is the create-subject form: a name and a comma-separated age list.
type Subject struct {
	Name string
	Ages string
}

// ParseAges splits a comma-separated age list, trimming each entry and
// dropping empty ones: "3-5, 6-8" becomes ["3-5", "6-8"].
func ParseAges(s string) []string {
	parts := strings.Split(s, ",")
	ages := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ages = append(ages, p)
		}
	}
	return ages
}

// Validate checks that both fields are filled in.
func (s *Subject) Validate() ValidationErrors {
	var errs ValidationErrors
	if blank(s.Name) {
		errs.add("name", "required")
	}
	if len(ParseAges(s.Ages)) == 0 {
		errs.add("availableForAges", "required")
	}
	return errs
}

// Request builds the create-subject payload.
func (s *Subject) Request() model.SubjectRequest {
	return model.SubjectRequest{
		Name:             s.Name,
		AvailableForAges: ParseAges(s.Ages),
	}
}

// Reset clears the form after a successful submission.
func (s *Subject) Reset() {
	s.Name = ""
	s.Ages = ""
}
