// SPDX-License-Identifier: MPL-2.0

package buildcfg

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/stembuild/stembuild/internal/source"
)

// ParseToggle interprets a truthy/falsy setting such as the
// system-library environment variable. Empty means false. Besides the
// strconv.ParseBool spellings it accepts yes/no and on/off. Anything else is
// a *source.ConfigurationError naming field.
func ParseToggle(field, value string) (bool, error) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "":
		return false, nil
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}

	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, &source.ConfigurationError{Field: field, Value: value, Reason: "expected a boolean (1/0, true/false, yes/no, on/off)"}
	}
	return b, nil
}
