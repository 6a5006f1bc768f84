package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Item result states.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Result represents the result of a single item in a batch
type Result struct {
	Item   string `json:"item"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report represents the aggregated results of a batch operation
type Report struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped,omitempty"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray parses a parameter that can be either a single string or
// an array of strings. Repeated values are dropped, keeping the first.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var values []string
	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(v, "[") {
			// Some clients send arrays JSON encoded
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err == nil {
				if len(arr) == 0 {
					return nil, fmt.Errorf("%s cannot be empty", paramName)
				}
				return ParseStringOrArray(toAny(arr), paramName)
			}
		}
		values = []string{v}
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			values = append(values, str)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	seen := make(map[string]bool, len(values))
	unique := values[:0]
	for _, s := range values {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	return unique, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}

// Process runs fn on each item in order. Once ctx is done the remaining
// items are reported as skipped.
func Process(ctx context.Context, items []string, fn func(ctx context.Context, item string) (string, error)) []Result {
	results := make([]Result, 0, len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Item: item, Status: StatusSkipped, Error: err.Error()})
			continue
		}
		res, err := fn(ctx, item)
		if err != nil {
			results = append(results, Result{Item: item, Status: StatusError, Error: err.Error()})
			continue
		}
		results = append(results, Result{Item: item, Status: StatusSuccess, Result: res})
	}

	return results
}

// NewReport aggregates item results.
func NewReport(results []Result) Report {
	r := Report{
		Total:   len(results),
		Results: results,
	}
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			r.Successful++
		case StatusSkipped:
			r.Skipped++
		default:
			r.Failed++
		}
	}
	return r
}

// JSON renders the report as indented JSON.
func (r Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch report: %w", err)
	}
	return string(data), nil
}
