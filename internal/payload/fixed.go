package payload

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	xerrors "ProjectAnchor/internal/errors"
)

// Fixed8 is a real number rendered with exactly eight digits after the
// decimal point. The text, not the float, is what gets hashed.
type Fixed8 string

// FormatFixed8 renders v in fixed-point notation with 8 decimals.
func FormatFixed8(v float64) Fixed8 {
	return Fixed8(strconv.FormatFloat(v, 'f', 8, 64))
}

// Float parses the stored text back into a float64.
func (f Fixed8) Float() (float64, error) {
	return strconv.ParseFloat(string(f), 64)
}

// UnmarshalJSON accepts either a JSON number, rendered with FormatFixed8,
// or a string that is kept verbatim so that verifiers hash exactly what
// they received. Build re-renders string input before sealing.
func (f *Fixed8) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Fixed8(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FormatFixed8(v)
	return nil
}

// canonical re-renders the text as fixed-point with 8 decimals. Text that
// is not a finite decimal number is rejected.
func (f Fixed8) canonical(field string) (Fixed8, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "score must be a finite decimal number",
			xerrors.WithMetadata("field", field),
			xerrors.WithMetadata("value", string(f)))
	}
	return FormatFixed8(v), nil
}
