package lp

import (
	"bufio"
	"io"
	"strings"
)

// declsPerLine caps the names written in one int or free section.
const declsPerLine = 16

// writeTerms renders terms as "x - 2 y + 0.5 z". An empty list renders as 0.
func writeTerms(b *strings.Builder, terms []Term) {
	if len(terms) == 0 {
		b.WriteString("0")
		return
	}
	for i, t := range terms {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			b.WriteString("-")
			coef = -coef
		case i > 0 && coef < 0:
			b.WriteString(" - ")
			coef = -coef
		case i > 0:
			b.WriteString(" + ")
		}
		if coef != 1 {
			b.WriteString(FormatNumber(coef))
			b.WriteString(" ")
		}
		b.WriteString(t.Var)
	}
}

// Format renders a single constraint line including the terminator.
func (c Constraint) Format() string {
	var b strings.Builder
	if c.Name != "" {
		b.WriteString(c.Name)
		b.WriteString(": ")
	}
	writeTerms(&b, c.Terms)
	b.WriteString(" ")
	b.WriteString(string(c.Op))
	b.WriteString(" ")
	b.WriteString(FormatNumber(c.RHS))
	b.WriteString(";")
	return b.String()
}

func writeDecls(w *bufio.Writer, keyword string, names []string) {
	for start := 0; start < len(names); start += declsPerLine {
		end := min(start+declsPerLine, len(names))
		w.WriteString(keyword)
		w.WriteString(" ")
		w.WriteString(strings.Join(names[start:end], ","))
		w.WriteString(";\n")
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo writes the problem in lp_solve LP format: objective, named rows,
// upper bounds of binaries, then int and free sections. Binaries are
// declared int with an explicit bound because a bin section would reset
// bounds set by earlier rows.
func (p *Problem) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	for _, c := range p.comment {
		bw.WriteString("/* ")
		bw.WriteString(c)
		bw.WriteString(" */\n")
	}
	var obj strings.Builder
	obj.WriteString("min: ")
	if len(p.Objective) > 0 {
		writeTerms(&obj, p.Objective)
	}
	obj.WriteString(";\n")
	bw.WriteString(obj.String())
	if len(p.Constraints) > 0 {
		bw.WriteString("\n")
	}
	for _, c := range p.Constraints {
		bw.WriteString(c.Format())
		bw.WriteString("\n")
	}
	if len(p.ints) > 0 {
		bw.WriteString("\n")
	}
	for _, v := range p.ints {
		bw.WriteString(v)
		bw.WriteString(" <= ")
		bw.WriteString(FormatNumber(p.bounds[v]))
		bw.WriteString(";\n")
	}
	writeDecls(bw, "int", p.ints)
	writeDecls(bw, "free", p.free)
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// String renders the problem as LP text.
func (p *Problem) String() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}
