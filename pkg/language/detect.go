package language

import "strings"

// block is an inclusive Unicode code point range.
type block struct {
	lo, hi rune
}

func (b block) contains(r rune) bool { return r >= b.lo && r <= b.hi }

var (
	devanagari = block{0x0900, 0x097F}
	bengali    = block{0x0980, 0x09FF}
	gurmukhi   = block{0x0A00, 0x0A7F}
	gujarati   = block{0x0A80, 0x0AFF}
	oriya      = block{0x0B00, 0x0B7F}
	tamil      = block{0x0B80, 0x0BFF}
	telugu     = block{0x0C00, 0x0C7F}
	kannada    = block{0x0C80, 0x0CFF}
	malayalam  = block{0x0D00, 0x0D7F}
)

// pattern pairs a language with the script block that identifies it.
type pattern struct {
	code  Code
	block block
}

// patterns is checked in order; the first script present in the text wins.
// Marathi shares Devanagari with Hindi and Assamese shares the Bengali
// block, so those two are reported as their script siblings.
var patterns = []pattern{
	{Hindi, devanagari},
	{Tamil, tamil},
	{Telugu, telugu},
	{Malayalam, malayalam},
	{Kannada, kannada},
	{Bengali, bengali},
	{Gujarati, gujarati},
	{Marathi, devanagari},
	{Punjabi, gurmukhi},
	{Odia, oriya},
	{Assamese, bengali},
}

// Detect classifies text into a supported language code. Text that
// contains none of the known Indic scripts is English.
func Detect(text string) Code {
	for _, p := range patterns {
		if containsBlock(text, p.block) {
			return p.code
		}
	}
	return English
}

// Matches returns every language whose script occurs in text, in
// priority order. Script siblings such as hi/mr are both reported.
// Empty or whitespace-only text yields nil.
func Matches(text string) []Code {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []Code
	for _, p := range patterns {
		if containsBlock(text, p.block) {
			out = append(out, p.code)
		}
	}
	if len(out) == 0 {
		return []Code{English}
	}
	return out
}

func containsBlock(text string, b block) bool {
	for _, r := range text {
		if b.contains(r) {
			return true
		}
	}
	return false
}
