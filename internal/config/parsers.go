// Package config loads volley settings from flags and JSON or YAML files.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// lookupSetting returns the first candidate key present in settings. Keys
// are tried as written and lowercased, since viper lowercases file keys.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		for _, k := range []string{key, strings.ToLower(key)} {
			if val, ok := settings[k]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprint(value), nil
}

// number widens any YAML/JSON numeric value to float64.
func number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// trimmed reports the trimmed string form of value, or ok=false when value
// is not a string.
func trimmed(value interface{}) (string, bool) {
	s, ok := value.(string)
	return strings.TrimSpace(s), ok
}

func asInt(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	if f, ok := number(value); ok {
		return int(f), nil
	}
	if s, ok := trimmed(value); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	return 0, fmt.Errorf("unsupported numeric type %T", value)
}

func asFloat64(value interface{}) (float64, error) {
	if value == nil {
		return 0, nil
	}
	if f, ok := number(value); ok {
		return f, nil
	}
	if s, ok := trimmed(value); ok {
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("unsupported float type %T", value)
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(s)
	}
	return false, fmt.Errorf("unsupported boolean type %T", value)
}

// asDuration accepts Go duration strings ("250ms", "5s") or bare numbers,
// which are read as seconds and may be fractional.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return secondsToDuration(secs), nil
	}
	if f, ok := number(value); ok {
		return secondsToDuration(f), nil
	}
	return 0, fmt.Errorf("unsupported duration type %T", value)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// asStringMap reads a header table. Values are stringified; keys must be
// non-empty.
func asStringMap(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	if m, ok := value.(map[string]string); ok {
		out := make(map[string]string, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	generic, err := genericMap(value)
	if err != nil {
		return nil, fmt.Errorf("unsupported headers type %T", value)
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, err := asString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported string slice type %T", value)
}

// toStringKeyMap reads a nested section (auth, output, tracing) with keys
// trimmed and lowercased.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	generic, err := genericMap(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(generic))
	for k, v := range generic {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// genericMap normalizes the two map shapes produced by the JSON and YAML
// decoders to string keys.
func genericMap(value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			key, err := asString(k)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected map, got %T", value)
}
