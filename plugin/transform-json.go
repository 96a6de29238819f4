package plugin

/*
	JSONKey

	This plugin allows for JSON to be used as the series source.

	The key is a dotted path; numeric parts index into arrays.
	The value found may be a single number or an array of numbers.
*/

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

type JSONKeyPlugin struct {
	MetricKey string
}

// NewJSONTransformer returns a struct for what to search in the JSON
func NewJSONTransformer(mk string) *JSONKeyPlugin {
	return &JSONKeyPlugin{MetricKey: mk}
}

// Extract finds MetricKey in the JSON document body
func (tj *JSONKeyPlugin) Extract(body []byte) ([]float64, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		slog.Error("Error unmarshalling json",
			slog.String("search", tj.MetricKey),
			slog.Any("error", err))
		return nil, fmt.Errorf("error unmarshalling json: %w", err)
	}

	values, err := ExtractValue(data, tj.MetricKey)
	if err != nil {
		return nil, fmt.Errorf("error extracting json value: %w", err)
	}

	return values, nil
}

// ExtractValue walks path through data. An empty path uses data itself.
func ExtractValue(data interface{}, path string) ([]float64, error) {
	current := data

	if path != "" {
		for _, key := range strings.Split(path, ".") {
			switch v := current.(type) {
			case map[string]interface{}:
				var ok bool
				current, ok = v[key]
				if !ok {
					return nil, fmt.Errorf("key %s not found", key)
				}
			case []interface{}:
				idx, err := strconv.Atoi(key)
				if err != nil || idx < 0 || idx >= len(v) {
					return nil, fmt.Errorf("index %s out of range", key)
				}
				current = v[idx]
			default:
				return nil, fmt.Errorf("cannot traverse into type %T at key %s", v, key)
			}
		}
	}

	switch v := current.(type) {
	case []interface{}:
		values := make([]float64, len(v))
		for i, item := range v {
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = f
		}
		return values, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("value not numeric: %T", v)
	}
}

func (tj *JSONKeyPlugin) Type() string { return "json_key" }
