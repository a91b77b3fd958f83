package card

import (
	"fmt"
	"strings"

	"github.com/zulandar/devtask/internal/models"
)

const notSpecified = "Not specified."

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Markdown renders the card as a shareable Markdown document. Tags are
// listed by name when given.
func Markdown(c *models.Card, tags []models.Tag) string {
	var b strings.Builder
	pre := c.PreDevAnalysis.Data()

	fmt.Fprintf(&b, "# %s\n\n", c.Title)
	fmt.Fprintf(&b, "- **Status:** %s\n", c.Status)
	if c.ReferenceLink != "" {
		fmt.Fprintf(&b, "- **Reference:** [%s](%s)\n", c.ReferenceLink, c.ReferenceLink)
	} else {
		b.WriteString("- **Reference:** N/A\n")
	}
	if len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(names, ", "))
	}

	b.WriteString("\n---\n\n## 1. Requirement\n")
	b.WriteString(orDefault(c.Requirement, notSpecified))
	b.WriteString("\n\n---\n\n## 2. Specification\n")
	b.WriteString(orDefault(c.Spec, notSpecified))
	b.WriteString("\n\n---\n\n## 3. Pre-Development Analysis\n\n")
	fmt.Fprintf(&b, "### Introduction\n%s\n\n", orDefault(pre.Introduction, notSpecified))
	fmt.Fprintf(&b, "### Impact Analysis\n%s\n\n", orDefault(pre.ImpactAnalysis, notSpecified))
	fmt.Fprintf(&b, "### How to Code\n%s\n\n", orDefault(pre.HowToCode, notSpecified))
	fmt.Fprintf(&b, "### Test Approach\n%s\n", orDefault(pre.TestApproach, notSpecified))
	b.WriteString("\n---\n\n## 4. Test Cases\n")

	if len(c.TestCases) == 0 {
		b.WriteString("No test cases specified.\n")
		return b.String()
	}
	for i, tc := range c.TestCases {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "\n**Test Case %d (%s)**\n", i+1, tc.Status)
		fmt.Fprintf(&b, "- **Description:** %s\n", orDefault(tc.Description, "N/A"))
		fmt.Fprintf(&b, "- **Input:** %s\n", orDefault(tc.Input, "N/A"))
		fmt.Fprintf(&b, "- **Expected Result:** %s\n", orDefault(tc.ExpectedResult, "N/A"))
	}
	return b.String()
}
