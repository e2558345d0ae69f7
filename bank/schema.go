package bank

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
)

// Resource kinds accepted in a "# schema: <kind>/v1" header.
const (
	KindFormulas    = "formulas"
	KindVariables   = "variables"
	KindAssumptions = "assumptions"

	schemaVersion = "v1"
	schemaPrefix  = "# schema:"
)

type line struct {
	no   int
	text string
}

// readLines returns the trimmed non-blank lines of r with their 1-based line
// numbers. A schema header, if present, must name kind at the supported
// version. Lines starting with '#' are comments.
func readLines(r io.Reader, kind string) ([]line, error) {
	var out []line
	sc := bufio.NewScanner(r)
	no := 0
	for sc.Scan() {
		no++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, schemaPrefix) {
			if err := checkSchema(strings.TrimSpace(strings.TrimPrefix(text, schemaPrefix)), kind); err != nil {
				return nil, formatErr(kind, no, "%v", err)
			}
			continue
		}
		if strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, line{no: no, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", kind)
	}
	return out, nil
}

func checkSchema(header, kind string) error {
	k, v, ok := strings.Cut(header, "/")
	if !ok {
		return errors.Errorf("malformed schema header %q", header)
	}
	if k != kind {
		return errors.Errorf("schema kind %q, want %q", k, kind)
	}
	if v != schemaVersion {
		return errors.Errorf("unsupported %s schema version %q", kind, v)
	}
	return nil
}

func formatErr(kind string, no int, format string, args ...interface{}) error {
	return errors.Wrapf(calcerr.ErrIncorrectFileFormatting, "%s line %d: "+format, append([]interface{}{kind, no}, args...)...)
}
