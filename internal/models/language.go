package models

import "strings"

// Language is a supported source language tag.
type Language struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	FileExtensions []string `json:"file_extensions"`
}

// SupportedLanguages is the fixed allow-list of reviewable languages. Beyond
// python and javascript it admits typescript, go and java; the aspect prompts
// do not depend on the language.
var SupportedLanguages = []Language{
	{Code: "python", Name: "Python", FileExtensions: []string{"py"}},
	{Code: "javascript", Name: "JavaScript", FileExtensions: []string{"js", "mjs", "cjs"}},
	{Code: "typescript", Name: "TypeScript", FileExtensions: []string{"ts", "tsx"}},
	{Code: "go", Name: "Go", FileExtensions: []string{"go"}},
	{Code: "java", Name: "Java", FileExtensions: []string{"java"}},
}

// LookupLanguage finds a supported language by code, case-insensitively.
func LookupLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageForExtension finds the supported language owning a file extension.
// A leading dot is ignored.
func LanguageForExtension(ext string) (Language, bool) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, l := range SupportedLanguages {
		if l.HasExtension(ext) {
			return l, true
		}
	}
	return Language{}, false
}

// HasExtension reports whether ext belongs to the language.
func (l Language) HasExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range l.FileExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LanguageCodes returns the codes of all supported languages in table order.
func LanguageCodes() []string {
	codes := make([]string, len(SupportedLanguages))
	for i, l := range SupportedLanguages {
		codes[i] = l.Code
	}
	return codes
}
