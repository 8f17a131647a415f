package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Paragraphs longer than this are split on sentence boundaries so the
// stored content stays readable in feed clients.
const maxParagraphLen = 500

// Boilerplate fragments stripped from extracted text. Turkish phrases
// first since most configured feeds are Turkish outlets.
var boilerplatePhrases = []string{
	"devamını oku",
	"devamini oku",
	"haberin devamı",
	"reklamdan sonra devam ediyor",
	"abone ol",
	"bizi takip edin",
	"continue reading",
	"read more",
	"click here",
	"subscribe to our newsletter",
	"sign up for our newsletter",
	"follow us on",
	"share this article",
	"advertisement",
	"sponsored content",
	"all rights reserved",
}

var socialArtifacts = []string{
	"pic.twitter.com",
	"twitter.com/",
	"instagram.com/",
	"facebook.com/",
	"t.me/",
}

var (
	reSpaces      = regexp.MustCompile(`[ \t]+`)
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
	rePunctuation = regexp.MustCompile(` +([.,!?;:])`)
	reSentenceEnd = regexp.MustCompile(`[.!?…]+["')\]]?\s+`)
)

// CleanText strips boilerplate lines and social-media artifacts from
// extracted article text, splits overlong paragraphs on sentence
// boundaries and normalizes whitespace.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = reSpaces.ReplaceAllString(strings.TrimSpace(line), " ")
		if line == "" {
			kept = append(kept, "")
			continue
		}
		if isBoilerplate(line) {
			continue
		}
		if utf8.RuneCountInString(line) > maxParagraphLen {
			for i, part := range splitParagraph(line) {
				if i > 0 {
					kept = append(kept, "")
				}
				kept = append(kept, part)
			}
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = reBlankLines.ReplaceAllString(out, "\n\n")
	out = rePunctuation.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

// splitParagraph cuts a paragraph into sentence groups of at most
// maxParagraphLen runes. A single sentence over the limit is kept
// whole; splitting mid-sentence reads worse than a long paragraph.
func splitParagraph(p string) []string {
	ends := reSentenceEnd.FindAllStringIndex(p, -1)
	if len(ends) == 0 {
		return []string{p}
	}

	sentences := make([]string, 0, len(ends)+1)
	start := 0
	for _, loc := range ends {
		sentences = append(sentences, strings.TrimSpace(p[start:loc[1]]))
		start = loc[1]
	}
	if rest := strings.TrimSpace(p[start:]); rest != "" {
		sentences = append(sentences, rest)
	}

	var parts []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sentence)+1 > maxParagraphLen {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isBoilerplate(line string) bool {
	lower := strings.ToLower(line)

	for _, artifact := range socialArtifacts {
		if strings.Contains(lower, artifact) {
			return true
		}
	}

	for _, phrase := range boilerplatePhrases {
		if !strings.Contains(lower, phrase) {
			continue
		}
		// A phrase inside a long paragraph is real prose; only short
		// lines are navigation chrome.
		if len([]rune(line)) < 80 {
			return true
		}
	}
	return false
}
