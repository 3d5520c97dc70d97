package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// statusRow is one "Label: [KIND] detail" line of bb status.
type statusRow struct {
	label  string
	kind   statusKind
	detail string
}

const statusLabelWidth = 10

func (k statusKind) String() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	default:
		return ansiBlue
	}
}

func (r statusRow) render(colorize bool) string {
	line := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, r.label+":", r.kind)
	if r.detail != "" {
		line += " " + r.detail
	}
	if colorize {
		return r.kind.color() + line + ansiReset
	}
	return line
}

func writeStatusSection(w io.Writer, title string, rows []statusRow, colorize bool) {
	header := fmt.Sprintf("== %s ==", title)
	rule := strings.Repeat("-", len(header))
	if colorize {
		header = ansiBlue + header + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, rule)
	for _, row := range rows {
		fmt.Fprintln(w, row.render(colorize))
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
