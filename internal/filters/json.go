package filters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const indent = "    "

// FromJSON decodes JSON text into maps, slices and scalars.
// Numbers are kept as json.Number so large integers survive a round trip.
func FromJSON(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("from_json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("from_json: trailing data after top-level value")
	}
	return v, nil
}

// ToNiceJSON encodes v with a four space indent and sorted map keys.
// HTML characters are left alone; escaping is the template's job.
func ToNiceJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("to_nice_json: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ToNiceYAML encodes v as block style YAML with a four space indent.
func ToNiceYAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(len(indent))
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("to_nice_yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("to_nice_yaml: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
