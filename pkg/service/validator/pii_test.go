package validator_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/service/validator"
)

func TestDetectPII(t *testing.T) {
	t.Run("email", func(t *testing.T) {
		text := "Reach the coordinator at alice@example.com for access."
		findings := validator.DetectPII(text)

		gt.Array(t, findings).Length(1)
		gt.Value(t, findings[0].Pattern).Equal("email")
		gt.S(t, text[findings[0].Start:findings[0].End]).Equal("alice@example.com")
	})

	t.Run("phone formats", func(t *testing.T) {
		text := "Call +1 (555) 123-4567 or the desk line 555-987-6543."
		findings := validator.DetectPII(text)

		gt.Array(t, findings).Length(2)
		for _, f := range findings {
			gt.Value(t, f.Pattern).Equal("phone")
		}
	})

	t.Run("national id digit groups", func(t *testing.T) {
		text := "The form listed 123-45-6789 as the identifier."
		findings := validator.DetectPII(text)

		gt.Array(t, findings).Length(1)
		gt.Value(t, findings[0].Pattern).Equal("national_id")
	})

	t.Run("street address", func(t *testing.T) {
		text := "The delegate lives at 742 Evergreen Terrace and commutes daily."
		findings := validator.DetectPII(text)

		gt.Array(t, findings).Length(1)
		gt.Value(t, findings[0].Pattern).Equal("street_address")
		gt.S(t, text[findings[0].Start:findings[0].End]).Equal("742 Evergreen Terrace")
	})

	t.Run("clean text has no findings", func(t *testing.T) {
		findings := validator.DetectPII("The committee adjourned without a decision.")
		gt.Array(t, findings).Length(0)
	})

	t.Run("findings are ordered by offset", func(t *testing.T) {
		text := "Send mail to bob@example.org or call 555-123-4567 today."
		findings := validator.DetectPII(text)

		gt.Array(t, findings).Length(2)
		gt.Value(t, findings[0].Pattern).Equal("email")
		gt.Value(t, findings[1].Pattern).Equal("phone")
		gt.Number(t, findings[0].Start).Less(findings[1].Start)
	})
}

func TestStripPII(t *testing.T) {
	t.Run("removes every finding", func(t *testing.T) {
		text := "Contact carol@example.net or 555-123-4567 about the draft."
		stripped := validator.StripPII(text)

		gt.Bool(t, strings.Contains(stripped, "[REDACTED]")).True()
		gt.Bool(t, strings.Contains(stripped, "carol")).False()
		gt.Bool(t, strings.Contains(stripped, "4567")).False()
		gt.Bool(t, strings.Contains(stripped, "about the draft.")).True()
	})

	t.Run("clean text passes through unchanged", func(t *testing.T) {
		text := "The amendment passed on the second reading."
		gt.S(t, validator.StripPII(text)).Equal(text)
	})
}
