// Package reader splits disassembly text into words.
package reader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf16"
)

// Word is one whitespace-separated word with its zero-based location.
type Word struct {
	Text   string
	Line   int
	Column int // byte offset in the line
	Char   int // UTF-16 code unit offset in the line, as LSP clients count
}

// End returns the column just past the word.
func (w Word) End() int {
	return w.Column + len(w.Text)
}

// CharEnd returns the UTF-16 offset just past the word.
func (w Word) CharEnd() int {
	return w.Char + utf16Len(w.Text)
}

// maxLine bounds a single input line; disassembly dumps are often one line.
const maxLine = 64 << 20

// Read returns every word of r in order.
func Read(r io.Reader) ([]Word, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var words []Word
	line := 0
	for sc.Scan() {
		words = appendWords(words, sc.Text(), line)
		line++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return words, nil
}

// ReadFile returns every word of the file at path.
func ReadFile(path string) ([]Word, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Texts returns the text of each word.
func Texts(words []Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

// At returns the index of the word covering the given byte position, or -1.
func At(words []Word, line, column int) int {
	return find(words, line, column, Word.span)
}

// AtChar is At for a UTF-16 position.
func AtChar(words []Word, line, char int) int {
	return find(words, line, char, Word.charSpan)
}

func (w Word) span() (int, int) {
	return w.Column, w.End()
}

func (w Word) charSpan() (int, int) {
	return w.Char, w.CharEnd()
}

func find(words []Word, line, offset int, span func(Word) (int, int)) int {
	for i, w := range words {
		if w.Line > line {
			break
		}
		if w.Line != line {
			continue
		}
		if start, end := span(w); offset >= start && offset <= end {
			return i
		}
	}
	return -1
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func appendWords(words []Word, text string, line int) []Word {
	start, startChar, char := -1, 0, 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, Word{Text: text[start:i], Line: line, Column: start, Char: startChar})
				start = -1
			}
		} else if start < 0 {
			start, startChar = i, char
		}
		char += utf16.RuneLen(r)
	}
	if start >= 0 {
		words = append(words, Word{Text: text[start:], Line: line, Column: start, Char: startChar})
	}
	return words
}
