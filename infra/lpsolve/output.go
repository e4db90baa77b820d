package lpsolve

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	variablesHeader   = "Actual values of the variables"
	constraintsHeader = "Actual values of the constraints"
	dualHeader        = "Dual value"
)

// ParseOutput reads the variable values printed by lp_solve. When improved
// solutions are printed several times the last section wins. ok is false
// when the output holds no variables section.
func ParseOutput(r io.Reader) (values map[string]float64, ok bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	inVars := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, variablesHeader):
			values = map[string]float64{}
			ok = true
			inVars = true
			continue
		case strings.HasPrefix(line, constraintsHeader), strings.HasPrefix(line, dualHeader):
			inVars = false
			continue
		}
		if !inVars || line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			continue
		}
		values[fields[0]] = v
	}
	if err := sc.Err(); err != nil {
		return nil, false, err
	}
	return values, ok, nil
}
