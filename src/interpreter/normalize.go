package interpreter

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe   = regexp.MustCompile(`</?[a-zA-Z][^<>]{0,40}>`)
	thousandsRe = regexp.MustCompile(`(\d),(\d{3})\b`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
)

var cleanup = strings.NewReplacer(
	// invisible characters
	"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "",
	"\u00a0", " ", "\u202f", " ", "\u2009", " ",
	// dash variants
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
	"\uff1a", ":",
	// markdown emphasis
	"**", "", "__", "", "~~", "", "`", "", "*", "", "_", "",
	"\r\n", "\n", "\r", "\n",
)

// normalize strips formatting noise so that the extractors only see
// plain text, one trimmed line per message line, empty lines removed.
func normalize(text string) string {
	s := htmlTagRe.ReplaceAllString(text, "")
	s = cleanup.Replace(s)
	s = thousandsRe.ReplaceAllString(s, "$1$2")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
