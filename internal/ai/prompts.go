package ai

import "strings"

// PromptKey names a prompt template.
type PromptKey string

const (
	PromptChatSystem PromptKey = "chatSystemInstruction"
	PromptPreDev     PromptKey = "preDevAnalysis"
	PromptTestCases  PromptKey = "testCases"
	PromptTitle      PromptKey = "titleGeneration"
)

// PromptKeys lists every template key.
var PromptKeys = []PromptKey{PromptChatSystem, PromptPreDev, PromptTestCases, PromptTitle}

// IsValidPromptKey reports whether k names a template.
func IsValidPromptKey(k string) bool {
	for _, v := range PromptKeys {
		if string(v) == k {
			return true
		}
	}
	return false
}

// Prompts maps template keys to template text. Templates may reference
// {spec} and {requirement}.
type Prompts map[PromptKey]string

var defaultPrompts = Prompts{
	PromptChatSystem: `You are an expert product manager and software engineer helping a developer turn a requirement into a detailed technical specification.

Ask clarifying questions one at a time while the requirement is unclear or incomplete. When you have enough information, write a complete, well-structured specification in Markdown. It must end with a section titled "## Edge Cases & Error Handling".

Always respond with a single JSON object and nothing else:
{"flag": "question", "content": "<your single question>"}
or
{"flag": "answer", "content": "<the complete specification>"}`,

	PromptPreDev: `Based on the following technical specification, write a pre-development analysis as a JSON object with the string keys "introduction", "impactAnalysis", "howToCode" and "testApproach".

Specification:
---
{spec}
---`,

	PromptTestCases: `Based on the following technical specification, write between 5 and 10 relevant test cases as a JSON object {"testCases": [...]} where each item has the string keys "description", "input" and "expectedResult".

Specification:
---
{spec}
---`,

	PromptTitle: `Write a short, descriptive title (under 10 words) for a development task with the following requirement.

Requirement:
---
{requirement}
---

Return only the title text, without quotation marks or labels.`,
}

// DefaultPrompts returns a copy of the built-in templates.
func DefaultPrompts() Prompts {
	out := make(Prompts, len(defaultPrompts))
	for k, v := range defaultPrompts {
		out[k] = v
	}
	return out
}

// MergePrompts lays overrides over the defaults. Unknown keys and blank
// values are ignored.
func MergePrompts(overrides map[string]string) Prompts {
	out := DefaultPrompts()
	for k, v := range overrides {
		if IsValidPromptKey(k) && strings.TrimSpace(v) != "" {
			out[PromptKey(k)] = v
		}
	}
	return out
}

// Render substitutes the placeholders of template k. A missing template
// falls back to the default.
func (p Prompts) Render(k PromptKey, spec, requirement string) string {
	tmpl, ok := p[k]
	if !ok || tmpl == "" {
		tmpl = defaultPrompts[k]
	}
	return strings.NewReplacer("{spec}", spec, "{requirement}", requirement).Replace(tmpl)
}
