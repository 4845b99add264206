package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Float parses a numeric payload as written by sysfs, sensor daemons or the
// CSV log. Surrounding whitespace is ignored.
func Float(payload []byte, source string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing float %q from %s", payload, source)
	}
	return v, nil
}

// Value parses a payload into a float, a bool or keeps it as string.
func Value(payload string) interface{} {
	s := strings.TrimSpace(payload)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return s
}

// FormatValue renders a record value as MQTT payload or CSV column.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
