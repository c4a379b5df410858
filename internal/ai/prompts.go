package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

type sectionDef struct {
	label      string
	format     string
	guidelines []string
}

var sectionOrder = []string{
	"internships",
	"projects",
	"skills",
	"awards",
	"extraAcademicActivities",
	"coursework",
	"position",
	"extracurricular",
	"competitions",
}

var sections = map[string]sectionDef{
	"internships": {
		label:  "internship",
		format: `{"title":"<title>","company":"<company>","location":"<location>","duration":"<duration>","description":"<description>"}`,
		guidelines: []string{
			"Description has 2-3 lines separated by \\n",
			"Start lines with action verbs and quantify results where possible",
			"Keep company names and locations realistic",
		},
	},
	"projects": {
		label:  "project",
		format: `{"title":"<title>","duration":"<duration>","url":"<url>","description":"<description>"}`,
		guidelines: []string{
			"Description has 2-3 technical lines separated by \\n",
			"Name the technologies used and the measurable outcome",
			"URLs look like repository links",
		},
	},
	"skills": {
		label:  "skill category",
		format: `{"title":"<category>","description":"<skills>"}`,
		guidelines: []string{
			"Description lists 4-8 skills separated by \\n",
			"Prefer current, in-demand tools over outdated ones",
		},
	},
	"awards": {
		label:  "award",
		format: `{"title":"<award>","description":"<details>"}`,
		guidelines: []string{
			"Description has 1-2 concise lines separated by \\n",
			"Include ranking or competition size where known",
		},
	},
	"extraAcademicActivities": {
		label:  "extra academic activity",
		format: `{"title":"<activity>","description":"<details>"}`,
		guidelines: []string{
			"Description has 2-3 lines separated by \\n",
			"Highlight research, scholarship or academic outcomes",
		},
	},
	"coursework": {
		label:  "coursework category",
		format: `{"title":"<category>","description":"<courses>"}`,
		guidelines: []string{
			"Description lists 4-8 courses separated by \\n",
			"Use proper course names relevant to the target field",
		},
	},
	"position": {
		label:  "position of responsibility",
		format: `{"title":"<position>","time":"<period>","description":"<details>"}`,
		guidelines: []string{
			`Time reads "Month Year - Present" or "Month Year - Month Year"`,
			"Description has 2-3 lines on leadership impact separated by \\n",
			"Mention team size or measurable outcomes",
		},
	},
	"extracurricular": {
		label:  "extracurricular activity",
		format: `{"title":"<activity>","description":"<details>"}`,
		guidelines: []string{
			"Description has 2-3 lines separated by \\n",
			"Show teamwork and contributions with concrete results",
		},
	},
	"competitions": {
		label:  "competition",
		format: `{"title":"<competition>","date":"<Month Year>","points":["<achievement>"]}`,
		guidelines: []string{
			"Points holds 2-4 achievements",
			"Include rankings, team size or selection criteria",
		},
	},
}

func atsPrompt(resume json.RawMessage) string {
	var b strings.Builder
	b.WriteString("Analyse the resume below as an applicant tracking system screening for a Software Development Engineer role.\n")
	b.WriteString(`Reply with ONE minified JSON object and nothing else: {"score":<integer 0-100>,"strengths":["<text>"],"areasToImprove":["<text>"],"aiSuggestions":["<text>"]}`)
	b.WriteString("\n\nScoring (100 points): technical keyword relevance 35, impact-driven achievements 20, section coverage 15, readability 10, skill depth 10, role alignment 10.\n")
	b.WriteString("Each array holds 3-6 items of at most 120 characters. Do not explain the score.\n\nResume:\n")
	b.Write(resume)
	return b.String()
}

func sectionPrompt(def sectionDef, data json.RawMessage, instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a resume consultant. Update the %s entry below according to the user's request.\n", def.label)
	b.WriteString("Return ONLY a minified JSON object with exactly the same structure as the input, not wrapped in any other object.\n")
	fmt.Fprintf(&b, "Expected format: %s\n\n", def.format)
	fmt.Fprintf(&b, "User request: %s\n\n", strings.TrimSpace(instruction))
	fmt.Fprintf(&b, "Current %s:\n", def.label)
	b.Write(data)
	b.WriteString("\n\nGuidelines:\n- Keep fields the user did not ask about, improving wording only\n")
	for _, g := range def.guidelines {
		b.WriteString("- " + g + "\n")
	}
	return b.String()
}
