package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// decodeLoose decodes a generic JSON value into out using json tags. Numbers
// and strings are converted into each other, which job APIs mix freely.
func decodeLoose(in, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(data)
	}
	return nil
}

func (f flexString) String() string { return strings.TrimSpace(string(f)) }

// formatSalary renders a min/max pair. Zero values are skipped.
func formatSalary(minimum, maximum float64, currency string) string {
	if currency == "" {
		currency = "$"
	}
	amount := func(v float64) string {
		return currency + strconv.FormatFloat(v, 'f', 0, 64)
	}
	switch {
	case minimum > 0 && maximum > 0 && maximum != minimum:
		return fmt.Sprintf("%s - %s", amount(minimum), amount(maximum))
	case minimum > 0:
		return amount(minimum)
	case maximum > 0:
		return amount(maximum)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
