// File: internal/domain/model/result.go
package model

import (
	"encoding/json"
	"fmt"
)

type ResultKind string

const (
	ResultKindScalar ResultKind = "scalar"
	ResultKindFile   ResultKind = "file"
	ResultKindMatrix ResultKind = "matrix"
	ResultKindChart  ResultKind = "chart"
	ResultKindError  ResultKind = "error"
)

type FileKind string

const (
	GenericFile FileKind = "generic"
	DomainFile  FileKind = "domain"
	ImageFile   FileKind = "image"
)

// ResultItem is one normalized, typed unit of a tool's output.
type ResultItem interface {
	Kind() ResultKind
}

type Scalar struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type FileRef struct {
	Name string   `json:"name"`
	URL  string   `json:"url"`
	File FileKind `json:"file_kind"`
}

type Matrix struct {
	Title string      `json:"title"`
	Rows  [][]float64 `json:"rows"`
}

type ChartRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ErrorItem struct {
	Message string `json:"message"`
}

func (Scalar) Kind() ResultKind    { return ResultKindScalar }
func (FileRef) Kind() ResultKind   { return ResultKindFile }
func (Matrix) Kind() ResultKind    { return ResultKindMatrix }
func (ChartRef) Kind() ResultKind  { return ResultKindChart }
func (ErrorItem) Kind() ResultKind { return ResultKindError }

// ResultItems is an ordered result list that round-trips through JSON with a
// kind tag, so job records survive session-state serialization.
type ResultItems []ResultItem

type resultEnvelope struct {
	Kind ResultKind      `json:"kind"`
	Item json.RawMessage `json:"item"`
}

func (rs ResultItems) MarshalJSON() ([]byte, error) {
	out := make([]resultEnvelope, 0, len(rs))
	for _, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, resultEnvelope{Kind: r.Kind(), Item: b})
	}
	return json.Marshal(out)
}

func (rs *ResultItems) UnmarshalJSON(data []byte) error {
	var envs []resultEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	items := make(ResultItems, 0, len(envs))
	for _, e := range envs {
		var item ResultItem
		switch e.Kind {
		case ResultKindScalar:
			var v Scalar
			if err := json.Unmarshal(e.Item, &v); err != nil {
				return err
			}
			item = v
		case ResultKindFile:
			var v FileRef
			if err := json.Unmarshal(e.Item, &v); err != nil {
				return err
			}
			item = v
		case ResultKindMatrix:
			var v Matrix
			if err := json.Unmarshal(e.Item, &v); err != nil {
				return err
			}
			item = v
		case ResultKindChart:
			var v ChartRef
			if err := json.Unmarshal(e.Item, &v); err != nil {
				return err
			}
			item = v
		case ResultKindError:
			var v ErrorItem
			if err := json.Unmarshal(e.Item, &v); err != nil {
				return err
			}
			item = v
		default:
			return fmt.Errorf("unknown result kind %q", e.Kind)
		}
		items = append(items, item)
	}
	*rs = items
	return nil
}

// Errors returns only the error items, for callers that need a quick
// success/failure read on a mixed result list.
func (rs ResultItems) Errors() []ErrorItem {
	var out []ErrorItem
	for _, r := range rs {
		if e, ok := r.(ErrorItem); ok {
			out = append(out, e)
		}
	}
	return out
}
