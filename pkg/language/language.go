// Package language holds the supported language set and a script-based
// language detector.
//
// Detection is a pure function over Unicode code points: no state, no I/O.
package language

import (
	"sort"
	"strings"
)

// Code is a short ISO-639-1 language code such as "hi" or "en".
type Code = string

// Supported language codes.
const (
	Hindi     Code = "hi"
	Malayalam Code = "ml"
	Tamil     Code = "ta"
	Telugu    Code = "te"
	Kannada   Code = "kn"
	English   Code = "en"
	Bengali   Code = "bn"
	Gujarati  Code = "gu"
	Marathi   Code = "mr"
	Punjabi   Code = "pa"
	Odia      Code = "or"
	Assamese  Code = "as"
)

// Default is used whenever no other language can be determined.
const Default = English

// Info describes one supported language.
type Info struct {
	Code   Code   `json:"code"`
	Locale string `json:"locale"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

var table = map[Code]Info{
	Hindi:     {Hindi, "hi-IN", "Hindi", "हिंदी"},
	Malayalam: {Malayalam, "ml-IN", "Malayalam", "മലയാളം"},
	Tamil:     {Tamil, "ta-IN", "Tamil", "தமிழ்"},
	Telugu:    {Telugu, "te-IN", "Telugu", "తెలుగు"},
	Kannada:   {Kannada, "kn-IN", "Kannada", "ಕನ್ನಡ"},
	English:   {English, "en-IN", "English", "English"},
	Bengali:   {Bengali, "bn-IN", "Bengali", "বাংলা"},
	Gujarati:  {Gujarati, "gu-IN", "Gujarati", "ગુજરાતી"},
	Marathi:   {Marathi, "mr-IN", "Marathi", "मराठी"},
	Punjabi:   {Punjabi, "pa-IN", "Punjabi", "ਪੰਜਾਬੀ"},
	Odia:      {Odia, "or-IN", "Odia", "ଓଡ଼ିଆ"},
	Assamese:  {Assamese, "as-IN", "Assamese", "অসমীয়া"},
}

// IsSupported reports whether code is in the supported set.
func IsSupported(code Code) bool {
	_, ok := table[code]
	return ok
}

// Lookup returns the Info for code.
func Lookup(code Code) (Info, bool) {
	info, ok := table[code]
	return info, ok
}

// Locale returns the BCP-47 locale for code, or en-IN when unsupported.
func Locale(code Code) string {
	if info, ok := table[code]; ok {
		return info.Locale
	}
	return table[Default].Locale
}

// FromLocale maps a locale such as "hi-IN" or "ta" back to its code.
// Unknown locales return "", false.
func FromLocale(locale string) (Code, bool) {
	primary := strings.ToLower(strings.SplitN(strings.ReplaceAll(locale, "_", "-"), "-", 2)[0])
	if IsSupported(primary) {
		return primary, true
	}
	return "", false
}

// All returns every supported language ordered by code.
func All() []Info {
	out := make([]Info, 0, len(table))
	for _, info := range table {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
