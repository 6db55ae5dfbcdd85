package validator

import (
	"regexp"
	"sort"
	"strings"
)

// PIIFinding is one detected privacy-sensitive span. Offsets are byte
// positions into the original text.
type PIIFinding struct {
	Pattern string
	Start   int
	End     int
}

// piiReplacement substitutes stripped spans. Matches the masq redaction
// marker used for logs.
const piiReplacement = "[REDACTED]"

type piiPattern struct {
	name string
	re   *regexp.Regexp
}

// The pattern set is shared by ingest-time detection and redaction in the
// privacy filter, so both always agree on what counts as PII.
var piiPatterns = []piiPattern{
	{
		name: "email",
		re:   regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	},
	{
		name: "phone",
		re:   regexp.MustCompile(`(?:\+\d{1,3}[-. ]?)?(?:\(\d{3}\)[-. ]?|\b\d{3}[-. ]?)\d{3}[-. ]?\d{4}\b`),
	},
	{
		name: "national_id",
		re:   regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`),
	},
	{
		name: "street_address",
		re:   regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-zA-Z]*\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Terrace|Ter|Way)\b`),
	},
}

// DetectPII scans the text with every pattern and returns findings ordered
// by start offset.
func DetectPII(text string) []PIIFinding {
	var findings []PIIFinding
	for _, p := range piiPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			findings = append(findings, PIIFinding{
				Pattern: p.name,
				Start:   loc[0],
				End:     loc[1],
			})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].End > findings[j].End
	})

	return findings
}

// StripPII replaces every detected span with the redaction marker.
// Overlapping findings collapse into a single replacement.
func StripPII(text string) string {
	findings := DetectPII(text)
	if len(findings) == 0 {
		return text
	}

	var sb strings.Builder
	pos := 0
	for _, f := range findings {
		if f.Start < pos {
			// Covered by the previous replacement
			if f.End > pos {
				pos = f.End
			}
			continue
		}
		sb.WriteString(text[pos:f.Start])
		sb.WriteString(piiReplacement)
		pos = f.End
	}
	sb.WriteString(text[pos:])

	return sb.String()
}
