package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	var out []TokenType
	for _, tok := range tokens {
		out = append(out, tok.Type)
	}
	return out
}

func TestScanTokensKeywordsAndSymbols(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"var decl", "var int: a;", []TokenType{TokenVar, TokenInt, TokenColon, TokenIdent, TokenSemicolon, TokenEOF}},
		{"two-char operators", "<= >= == !=", []TokenType{TokenLE, TokenGE, TokenEq, TokenNotEq, TokenEOF}},
		{"main keyword vs identifier", "main mainly", []TokenType{TokenMain, TokenIdent, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenTypes(NewScanner(tt.input).ScanTokens())
			require.Equal(t, tt.want, got)
		})
	}
}

func TestScanTokensSkipsLineComments(t *testing.T) {
	tokens := NewScanner("var int: a; // trailing comment\nvar int: b;").ScanTokens()
	require.Len(t, tokenTypes(tokens), 11) // 5 + 5 + EOF
}

func TestScanStringLiteralKeepsEscapesRaw(t *testing.T) {
	tokens := NewScanner(`"hi\n"`).ScanTokens()
	require.Len(t, tokens, 2)
	require.Equal(t, TokenStringConst, tokens[0].Type)
	require.Equal(t, `hi\n`, tokens[0].Lexeme, "backslash escapes are not decoded at scan time")
}

func TestScanNumberDistinguishesIntFromFloat(t *testing.T) {
	tokens := NewScanner("42 3.14").ScanTokens()
	require.Equal(t, TokenIntConst, tokens[0].Type)
	require.Equal(t, TokenFloatConst, tokens[1].Type)
}

func TestScanUnexpectedCharacterReportsLexError(t *testing.T) {
	tokens := NewScanner("@").ScanTokens()
	require.Equal(t, TokenEOF, tokens[0].Type)
	require.Contains(t, tokens[0].Lexeme, "lex error")
}

func TestScanTracksLineNumbers(t *testing.T) {
	tokens := NewScanner("var\nint").ScanTokens()
	require.Equal(t, 1, tokens[0].Line)
	require.Equal(t, 2, tokens[1].Line)
}
