package expressions

import (
	"fmt"
	"strings"
	"unicode"
)

// tokenKind classifies a lexed token of the friendly expression language.
type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenOperator // == != <= >= < >
	tokenRange    // ..
	tokenComma
	tokenEOF
)

// token is a single lexeme with its raw text.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex tokenizes a friendly expression. Maximal munch makes the two-character
// operators (==, !=, <=, >=, ..) unambiguous against their one-character
// prefixes, which substring sniffing could not guarantee.
func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++

		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokenString, text: string(runes[i+1 : j]), pos: i})
			i = j + 1

		case r == '.' && i+1 < len(runes) && runes[i+1] == '.':
			tokens = append(tokens, token{kind: tokenRange, text: "..", pos: i})
			i += 2

		case strings.ContainsRune("=!<>", r):
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenOperator, text: string(runes[i : i+2]), pos: i})
				i += 2
				break
			}
			if r == '<' || r == '>' {
				tokens = append(tokens, token{kind: tokenOperator, text: string(r), pos: i})
				i++
				break
			}
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)

		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			if runes[j] == '-' {
				j++
			}
			sawDot := false
		num:
			for j < len(runes) {
				switch {
				case unicode.IsDigit(runes[j]):
					j++
				// A decimal point is part of the number only when a digit
				// follows; "1..5" lexes as 1, .., 5.
				case runes[j] == '.' && !sawDot && j+1 < len(runes) && unicode.IsDigit(runes[j+1]):
					sawDot = true
					j++
				default:
					break num
				}
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[i:j]), pos: i})
			i = j

		case unicode.IsLetter(r) || r == '_':
			j := i
		ident:
			for j < len(runes) {
				switch {
				case unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_':
					j++
				// Dotted path segment; ".." terminates the identifier so
				// range bounds can be variables.
				case runes[j] == '.' && j+1 < len(runes) && (unicode.IsLetter(runes[j+1]) || runes[j+1] == '_'):
					j++
				default:
					break ident
				}
			}
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[i:j]), pos: i})
			i = j

		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})
	return tokens, nil
}
