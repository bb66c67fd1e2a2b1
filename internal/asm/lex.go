// Package asm implements the textual assembler of spec §4.5: whitespace
// lexing, Instructions/PushLabel block construction, a byte-level
// peephole, and fixed-point label resolution. Grounded on
// statick-tools/src/lib/assembler/mod.rs (see DESIGN.md), adapted to
// this toolchain's Instruction representation, where a single
// isa.Instruction already carries its trailing data byte (PushNextLower/
// PushNextUpper), unlike the original's one-Instruction-per-byte
// encoding.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"stannel/internal/diag"
)

type tokenKind int

const (
	tokIdentifier tokenKind = iota
	tokNumber
	tokLabel
)

type lexToken struct {
	Kind  tokenKind
	Text  string
	Value uint16
}

// lex splits src on whitespace, strips '#' line comments, and classifies
// each word: a trailing ':' marks a label definition, a purely-numeric
// word is a number, anything else is an identifier (resolved later
// against the instruction mnemonic table or as a label reference).
func lex(src string) []lexToken {
	var toks []lexToken
	for _, line := range strings.Split(src, "\n") {
		for _, word := range strings.Fields(line) {
			if strings.HasPrefix(word, "#") {
				break
			}
			if strings.HasSuffix(word, ":") && len(word) > 1 {
				toks = append(toks, lexToken{Kind: tokLabel, Text: strings.TrimSuffix(word, ":")})
				continue
			}
			if n, err := strconv.ParseUint(word, 10, 16); err == nil {
				toks = append(toks, lexToken{Kind: tokNumber, Value: uint16(n)})
				continue
			}
			toks = append(toks, lexToken{Kind: tokIdentifier, Text: word})
		}
	}
	return toks
}

func asmErr(kind, format string, args ...any) error {
	return &diag.AsmError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
