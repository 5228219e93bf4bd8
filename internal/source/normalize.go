package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// postFromRecord builds a Post from a decoded provider record, keeping only the
// requested fields in Post.Fields. Records without an id or a creation time are rejected.
func postFromRecord(rec map[string]any, fields []string) (Post, error) {
	id, _ := rec[FieldID].(string)
	if id == "" {
		return Post{}, errors.New("record without id")
	}

	created, ok := numberField(rec[FieldCreatedAt])
	if !ok {
		return Post{}, fmt.Errorf("record %s: missing %s", id, FieldCreatedAt)
	}

	p := Post{
		ID:        id,
		CreatedAt: int64(created),
		Score:     1,
		Fields:    make(map[string]any, len(fields)),
	}
	if s, ok := rec[FieldTitle].(string); ok {
		p.Title = s
	}
	if s, ok := rec[FieldBody].(string); ok {
		p.Body = s
	}
	if n, ok := numberField(rec[FieldScore]); ok {
		p.Score = int(n)
	}

	for _, f := range fields {
		if v, ok := rec[f]; ok {
			p.Fields[f] = v
		}
	}
	p.Fields[FieldCreatedAt] = p.CreatedAt

	return p, nil
}

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return math.Floor(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return math.Floor(f), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return math.Floor(f), true
	default:
		return 0, false
	}
}
