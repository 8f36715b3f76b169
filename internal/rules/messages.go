package rules

import (
	"fmt"
	"strings"

	"triagecopilot/internal/model"
)

// Draft message templates are pure string builders with no branching beyond
// field substitution. Versioning and org tone rules would layer on top.

func fieldsLabel(issue model.Issue) string {
	if len(issue.Fields) == 0 {
		return "(unspecified fields)"
	}
	return strings.Join(issue.Fields, ", ")
}

// BuildQuerySiteMessage drafts a polite query to the site investigator.
func BuildQuerySiteMessage(issue model.Issue) string {
	return fmt.Sprintf(
		"Subject %s: Please review the following potential issue in %s for fields [%s]. %s "+
			"Kindly confirm and/or provide clarification/corrections as appropriate.",
		issue.SubjectID, issue.Domain, fieldsLabel(issue), issue.Description,
	)
}

// BuildDataFixMessage drafts an internal note for the data management team.
func BuildDataFixMessage(issue model.Issue) string {
	return fmt.Sprintf(
		"Recommended data fix for subject %s in %s for fields [%s]. "+
			"Review the evidence payload and apply a consistent correction.",
		issue.SubjectID, issue.Domain, fieldsLabel(issue),
	)
}
