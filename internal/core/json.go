package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Number is a form value that arrives either as a JSON number or as a numeric string.
// Null and "" leave it unset.
type Number struct {
	Value float64
	Valid bool
}

func NewNumber(v float64) Number { return Number{Value: v, Valid: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = Number{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Number{Value: v, Valid: true}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(b))
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// score is a model-produced number. It never fails to decode: "85%", "0.9" and 85 all
// work, anything else is zero.
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = score(v)
	return nil
}

// flexText accepts a string, a list of strings (joined by newlines) or any other JSON value
// (kept as its raw text).
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = flexText(strings.Join(list, "\n"))
		return nil
	}
	if string(bytes.TrimSpace(b)) == "null" {
		*t = ""
		return nil
	}
	*t = flexText(bytes.TrimSpace(b))
	return nil
}

// flexList is the opposite: a single string becomes a one-element list.
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	var list []flexText
	if err := json.Unmarshal(b, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(string(item)); s != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var one flexText
	if err := one.UnmarshalJSON(b); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = []string{string(one)}
	return nil
}

// extractJSON pulls the JSON object out of a model answer, dropping Markdown code fences
// and any prose around the braces.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// excerpt returns the first n runes of s followed by "...".
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s + "..."
	}
	return string([]rune(s)[:n]) + "..."
}

// fraction turns a 0-100 percentage into the stored 0-1 value. Values already
// in 0-1 are kept.
func fraction(percent float64) float64 {
	if percent > 1 {
		return percent / 100
	}
	return percent
}
