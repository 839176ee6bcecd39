package parser

import (
	"strconv"
	"strings"
	"unicode"
)

var (
	labelEntry      = []string{"entry"}
	labelStopLoss   = []string{"stop", "loss"}
	labelTakeProfit = []string{"take", "profit"}
)

// Words that can start a line but never name an asset
var reservedWords = map[string]bool{
	"entry": true,
	"stop":  true,
	"take":  true,
	"long":  true,
	"short": true,
}

// scanner walks a single line
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) skipSpaces() int {
	start := sc.pos
	for sc.pos < len(sc.s) && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
	return sc.pos - start
}

func (sc *scanner) accept(b byte) bool {
	if sc.pos < len(sc.s) && sc.s[sc.pos] == b {
		sc.pos++
		return true
	}
	return false
}

// word consumes w case-insensitively
func (sc *scanner) word(w string) bool {
	end := sc.pos + len(w)
	if end > len(sc.s) || !strings.EqualFold(sc.s[sc.pos:end], w) {
		return false
	}
	sc.pos = end
	return true
}

// separator consumes the gap between two label words: spaces or one slash
func (sc *scanner) separator() bool {
	if sc.accept('/') {
		return true
	}
	return sc.skipSpaces() > 0
}

// number consumes [+-]?digits[.digits] and parses it
func (sc *scanner) number() (float64, bool) {
	start := sc.pos
	if sc.pos < len(sc.s) && (sc.s[sc.pos] == '+' || sc.s[sc.pos] == '-') {
		sc.pos++
	}
	digits := sc.pos
	for sc.pos < len(sc.s) && isDigit(sc.s[sc.pos]) {
		sc.pos++
	}
	if sc.pos == digits {
		sc.pos = start
		return 0, false
	}
	if sc.accept('.') {
		for sc.pos < len(sc.s) && isDigit(sc.s[sc.pos]) {
			sc.pos++
		}
	}
	text := strings.TrimSuffix(sc.s[start:sc.pos], ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		sc.pos = start
		return 0, false
	}
	return v, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// labeledValue reads `<label> [:] [$] <number>` at the start of line
func labeledValue(line string, label []string) (float64, bool) {
	sc := &scanner{s: line}
	sc.skipSpaces()
	for i, w := range label {
		if i > 0 && !sc.separator() {
			return 0, false
		}
		if !sc.word(w) {
			return 0, false
		}
	}
	sc.skipSpaces()
	sc.accept(':')
	sc.skipSpaces()
	sc.accept('$')
	sc.skipSpaces()
	return sc.number()
}

// leadingTicker returns the first word of line when it is a 3-5 letter
// whole word that is not a reserved label
func leadingTicker(line string) (string, bool) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	end := 0
	for end < len(trimmed) && isASCIILetter(trimmed[end]) {
		end++
	}
	if end < 3 || end > 5 {
		return "", false
	}
	if end < len(trimmed) && isWordByte(trimmed[end]) {
		return "", false
	}
	word := trimmed[:end]
	if reservedWords[strings.ToLower(word)] {
		return "", false
	}
	return strings.ToUpper(word), true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isWordByte(b byte) bool {
	return isASCIILetter(b) || isDigit(b) || b == '_'
}

// fields collects the first occurrence of each open-signal field
type fields struct {
	asset      string
	entry      *float64
	stopLoss   *float64
	takeProfit *float64
}

func tokenize(text string) fields {
	var f fields
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if f.asset == "" {
			if t, ok := leadingTicker(line); ok {
				f.asset = t
			}
		}
		if f.entry == nil {
			if v, ok := labeledValue(line, labelEntry); ok {
				f.entry = &v
				continue
			}
		}
		if f.stopLoss == nil {
			if v, ok := labeledValue(line, labelStopLoss); ok {
				f.stopLoss = &v
				continue
			}
		}
		if f.takeProfit == nil {
			if v, ok := labeledValue(line, labelTakeProfit); ok {
				f.takeProfit = &v
			}
		}
	}
	return f
}
