package adapters

import (
	"context"
	"fmt"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

// Frame is the lightweight tabular handle h2o.frame produces: an ordered
// list of row dicts.
type Frame struct {
	evaluator.HandleBase
	rows []*evaluator.Dict
}

func NewFrame(rows []*evaluator.Dict) *Frame { return &Frame{rows: rows} }

func (f *Frame) HandleKind() string { return "frame" }

func (f *Frame) String() string { return fmt.Sprintf("<frame rows=%d>", len(f.rows)) }

func (f *Frame) Rows() []*evaluator.Dict { return f.rows }

// Describe reports the frame shape: row count and the column names of the
// first row.
func (f *Frame) Describe() *evaluator.Dict {
	d := evaluator.NewDict()
	d.Set("rows", evaluator.Int{Value: int64(len(f.rows))})
	cols := evaluator.NewArray()
	if len(f.rows) > 0 {
		for _, k := range f.rows[0].Keys() {
			cols.Items = append(cols.Items, evaluator.String{Value: k})
		}
	}
	d.Set("columns", cols)
	return d
}

// Frame coerces a script value into tabular form: frames pass through,
// arrays contribute their dict elements, anything else becomes an empty
// frame.
func (s *Set) Frame(v evaluator.Value) (evaluator.Tabular, error) {
	switch t := v.(type) {
	case evaluator.Tabular:
		return t, nil
	case *evaluator.Array:
		var rows []*evaluator.Dict
		for _, it := range t.Items {
			if row, ok := it.(*evaluator.Dict); ok {
				rows = append(rows, row)
			}
		}
		return NewFrame(rows), nil
	default:
		return NewFrame(nil), nil
	}
}

// Model is the mock AutoML result. Predictions follow a fixed churn-style
// rule over purchase frequency and income so demo scripts get stable,
// explainable output.
type Model struct {
	evaluator.HandleBase
	name        string
	target      string
	leaderboard *evaluator.Array
}

func (m *Model) HandleKind() string { return "model" }

func (m *Model) String() string {
	return fmt.Sprintf("<model name=%s leaderboard=%d>", m.name, len(m.leaderboard.Items))
}

func (m *Model) ModelName() string { return m.name }

func (m *Model) Leaderboard() *evaluator.Array { return m.leaderboard }

func (m *Model) Predict(frame evaluator.Tabular) ([]*evaluator.Dict, error) {
	rows := frame.Rows()
	out := make([]*evaluator.Dict, 0, len(rows))
	for _, row := range rows {
		freq := numberField(row, 3, "purchase_frequency", "freq")
		income := numberField(row, 60000, "income")

		prediction, confidence := int64(0), 0.75
		if freq <= 1 || income < 50000 {
			prediction, confidence = 1, 0.80
		}
		result := evaluator.NewDict()
		result.Set("prediction", evaluator.Int{Value: prediction})
		result.Set("confidence", evaluator.Float{Value: confidence})
		out = append(out, result)
	}
	return out, nil
}

func numberField(row *evaluator.Dict, fallback float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := row.Get(k); ok {
			switch t := v.(type) {
			case evaluator.Int:
				return float64(t.Value)
			case evaluator.Float:
				return t.Value
			}
		}
	}
	return fallback
}

// AutoML trains the mock model: a fixed leaderboard with the GBM variant
// on top.
func (s *Set) AutoML(_ context.Context, _ evaluator.Tabular, target string) (evaluator.Model, error) {
	lb := evaluator.NewArray()
	for _, entry := range []struct {
		id  string
		auc float64
	}{
		{"GBM_1", 0.93},
		{"GLM_1", 0.88},
		{"DRF_1", 0.85},
	} {
		d := evaluator.NewDict()
		d.Set("model_id", evaluator.String{Value: entry.id})
		d.Set("model", evaluator.String{Value: entry.id})
		d.Set("auc", evaluator.Float{Value: entry.auc})
		lb.Items = append(lb.Items, d)
	}
	return &Model{name: "mock_automl", target: target, leaderboard: lb}, nil
}
