package valuegen

import (
	"strconv"
	"strings"
)

const promptRules = `CRITICAL RULES:
- Fill EVERY SINGLE field in the list above - do not skip any
- For date fields (Month, Day, Year): use 2-digit format (01-12, 01-31, 20-25)
- For fields that hold a whole year: use 4 digits (e.g. "2025")
- For dates with full format (like "Sell date 1"): use MM/DD/YYYY format
- For State fields: use 2-letter codes like "CA", "NY", "TX"
- For zip codes: use 5-digit format like "90210" or "12345"
- Use realistic but fake names, addresses, phone numbers
- For fields ending with " 2": Only fill if there are genuinely 2 different people/items, otherwise leave empty ("")`

const promptExample = `Example: {"Name": "John Smith", "State": "CA", "Month": "03", "Day": "15", "Zip": "90210", "Date": "03/15/2025"}`

// BuildPrompt renders the generation prompt for fields. docText is included
// as form context when not empty.
func BuildPrompt(fields []string, docText string) string {
	var b strings.Builder
	b.WriteString("Generate realistic sample data for a form with the following fields.\n\n")
	b.WriteString("IMPORTANT: Use these EXACT field names as JSON keys (preserve spacing, capitalization):\n")
	for _, f := range fields {
		b.WriteString(strconv.Quote(f))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(promptRules)
	b.WriteString("\n\n")

	if text := strings.TrimSpace(docText); text != "" {
		b.WriteString("The form reads as follows (use it to pick sensible values):\n---\n")
		b.WriteString(text)
		b.WriteString("\n---\n\n")
	}

	b.WriteString("Return ONLY a JSON object with ALL the field names above filled.\n")
	b.WriteString(promptExample)
	return b.String()
}
