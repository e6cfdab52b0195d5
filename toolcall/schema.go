package toolcall

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a tool's parameter schema. A nil schema and no error
// are returned when there is nothing to validate against.
func CompileSchema(name string, schemaJSON []byte) (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(schemaJSON)) == 0 {
		return nil, nil
	}

	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource for %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return s, nil
}

// ValidateArguments checks args against a compiled schema and returns one
// message per violation.
func ValidateArguments(s *jsonschema.Schema, args map[string]any) []string {
	if s == nil {
		return nil
	}

	// Round-trip so values have the types encoding/json produces.
	data, err := json.Marshal(args)
	if err != nil {
		return []string{fmt.Sprintf("arguments cannot be encoded: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("arguments cannot be decoded: %v", err)}
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}

	var problems []string
	collectViolations(verr, &problems)
	sort.Strings(problems)
	return problems
}

func collectViolations(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		loc := verr.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, verr.Message))
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, out)
	}
}
