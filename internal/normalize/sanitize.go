package normalize

import "strings"

// delimitReplacer maps characters that break comma-delimited flat
// files onto plain ASCII: smart quotes to straight quotes, form feed
// to underscore, carriage return and line feed to dashes.
var delimitReplacer = strings.NewReplacer(
	"“", `"`, // left smart double quote
	"”", `"`, // right smart double quote
	"‘", "'", // left smart single quote
	"’", "'", // right smart single quote
	"\f", "_",
	"\r", "-",
	"\n", "-",
)

// Clean sanitizes free text for flat-file storage. Issue
// descriptions, comments and similar fields routinely carry line
// breaks and Windows smart punctuation that would corrupt row
// delimiting downstream.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	return delimitReplacer.Replace(s)
}
