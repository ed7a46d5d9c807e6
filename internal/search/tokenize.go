package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/character"
)

// MinTokenLength is the rune length a token must exceed to count for matching.
const MinTokenLength = 2

var (
	// Split on whitespace only so error codes like "E-04" and "wi-fi" stay whole.
	tokenizer   = character.NewCharacterTokenizer(notSpace)
	lowerFilter = lowercase.NewLowerCaseFilter()
)

func notSpace(r rune) bool {
	return !unicode.IsSpace(r)
}

// Tokenize splits text on whitespace into lowercased tokens longer than MinTokenLength runes.
// Surrounding punctuation is trimmed; inner hyphens stay, so "e-04" is one token.
// Duplicates are removed and first-occurrence order is kept.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	stream := lowerFilter.Filter(tokenizer.Tokenize([]byte(text)))

	seen := make(map[string]struct{}, len(stream))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		// Trailing commas and the like would never be substrings of stored text.
		term := strings.TrimFunc(string(tok.Term), unicode.IsPunct)
		if utf8.RuneCountInString(term) <= MinTokenLength {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		tokens = append(tokens, term)
	}
	return tokens
}
