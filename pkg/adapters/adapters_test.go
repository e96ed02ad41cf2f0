package adapters

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

func newSet() *Set {
	return New(Options{
		Logger:       &log.Logger{Writer: &log.IOWriter{Writer: io.Discard}},
		StartupGrace: 20 * time.Millisecond,
	})
}

func mustQuery(t *testing.T, db evaluator.Database, q string) []*evaluator.Dict {
	t.Helper()
	rows, err := db.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	return rows
}

func field(t *testing.T, row *evaluator.Dict, key string) evaluator.Value {
	t.Helper()
	v, ok := row.Get(key)
	if !ok {
		t.Fatalf("row has no %q column: %v", key, row.Keys())
	}
	return v
}

func TestConnectFallsBackToMock(t *testing.T) {
	s := newSet()
	db, err := s.Connect(context.Background(), "db://warehouse", "", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, ok := db.(*mockDB); !ok {
		t.Fatalf("unknown scheme should yield the mock, got %T", db)
	}
	// A malformed URI also falls back rather than failing the script.
	db, err = s.Connect(context.Background(), "::not a uri::", "", "")
	if err != nil || db == nil {
		t.Fatalf("got %T, %v", db, err)
	}
}

func TestMockQueryFixtures(t *testing.T) {
	db := newMockDB("db://demo")

	orders := mustQuery(t, db, "SELECT * FROM orders")
	if len(orders) != 3 {
		t.Fatalf("got %d orders", len(orders))
	}
	if !evaluator.DeepEqual(field(t, orders[0], "status"), evaluator.String{Value: "shipped"}) {
		t.Fatalf("first order: %v", orders[0])
	}
	// Column order matches the fixture definition.
	wantCols := []string{"id", "status", "is_return", "amount"}
	for i, k := range orders[0].Keys() {
		if k != wantCols[i] {
			t.Fatalf("columns %v, want %v", orders[0].Keys(), wantCols)
		}
	}

	shipped := mustQuery(t, db, "select * from orders where status='shipped'")
	if len(shipped) != 2 {
		t.Fatalf("got %d shipped orders", len(shipped))
	}

	active := mustQuery(t, db, "SELECT * FROM customers WHERE active = true")
	if len(active) != 2 {
		t.Fatalf("got %d active customers", len(active))
	}
	if !evaluator.DeepEqual(field(t, active[1], "name"), evaluator.String{Value: "Bob"}) {
		t.Fatalf("second active customer: %v", active[1])
	}

	if rows := mustQuery(t, db, "select * from nothing"); len(rows) != 0 {
		t.Fatalf("unknown table returned %d rows", len(rows))
	}
}

func TestMockQueryReturnsFreshRows(t *testing.T) {
	db := newMockDB("db://demo")
	first := mustQuery(t, db, "select * from orders")
	first[0].Set("status", evaluator.String{Value: "mutated"})
	second := mustQuery(t, db, "select * from orders")
	if !evaluator.DeepEqual(field(t, second[0], "status"), evaluator.String{Value: "shipped"}) {
		t.Fatal("mutating a result row leaked into the fixtures")
	}
}

func TestFrameCoercion(t *testing.T) {
	s := newSet()

	row := evaluator.NewDict()
	row.Set("a", evaluator.Int{Value: 1})
	row.Set("b", evaluator.Int{Value: 2})
	frame, err := s.Frame(evaluator.NewArray(row, evaluator.String{Value: "skipped"}))
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if len(frame.Rows()) != 1 {
		t.Fatalf("got %d rows", len(frame.Rows()))
	}

	desc := frame.Describe()
	if !evaluator.DeepEqual(field(t, desc, "rows"), evaluator.Int{Value: 1}) {
		t.Fatalf("describe: %v", desc)
	}
	cols, _ := desc.Get("columns")
	want := evaluator.NewArray(evaluator.String{Value: "a"}, evaluator.String{Value: "b"})
	if !evaluator.DeepEqual(cols, want) {
		t.Fatalf("columns: %v", cols)
	}

	// An existing frame passes through unchanged.
	again, _ := s.Frame(frame)
	if again != frame {
		t.Fatal("frames should pass through")
	}

	// Non-tabular input yields an empty frame.
	empty, _ := s.Frame(evaluator.Int{Value: 3})
	if len(empty.Rows()) != 0 {
		t.Fatal("scalar input should yield an empty frame")
	}
}

func TestAutoMLLeaderboard(t *testing.T) {
	s := newSet()
	model, err := s.AutoML(context.Background(), NewFrame(nil), "churn")
	if err != nil {
		t.Fatalf("automl: %v", err)
	}
	if model.ModelName() != "mock_automl" {
		t.Fatalf("model name %q", model.ModelName())
	}
	lb := model.Leaderboard()
	if len(lb.Items) != 3 {
		t.Fatalf("got %d leaderboard entries", len(lb.Items))
	}
	top := lb.Items[0].(*evaluator.Dict)
	if !evaluator.DeepEqual(field(t, top, "model_id"), evaluator.String{Value: "GBM_1"}) {
		t.Fatalf("top entry: %v", top)
	}
	if !evaluator.DeepEqual(field(t, top, "auc"), evaluator.Float{Value: 0.93}) {
		t.Fatalf("top auc: %v", top)
	}
}

func TestPredictRule(t *testing.T) {
	s := newSet()
	model, _ := s.AutoML(context.Background(), NewFrame(nil), "churn")

	mkRow := func(freq, income int64) *evaluator.Dict {
		d := evaluator.NewDict()
		d.Set("purchase_frequency", evaluator.Int{Value: freq})
		d.Set("income", evaluator.Int{Value: income})
		return d
	}

	cases := []struct {
		row        *evaluator.Dict
		prediction int64
		confidence float64
	}{
		{mkRow(1, 90000), 1, 0.80},  // rare buyer churns
		{mkRow(5, 30000), 1, 0.80},  // low income churns
		{mkRow(5, 90000), 0, 0.75},  // frequent, well-off stays
		{evaluator.NewDict(), 0, 0.75}, // defaults: freq 3, income 60000
	}
	for i, tc := range cases {
		preds, err := model.Predict(NewFrame([]*evaluator.Dict{tc.row}))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if len(preds) != 1 {
			t.Fatalf("case %d: %d predictions", i, len(preds))
		}
		if !evaluator.DeepEqual(field(t, preds[0], "prediction"), evaluator.Int{Value: tc.prediction}) {
			t.Fatalf("case %d: %v", i, preds[0])
		}
		if !evaluator.DeepEqual(field(t, preds[0], "confidence"), evaluator.Float{Value: tc.confidence}) {
			t.Fatalf("case %d: %v", i, preds[0])
		}
	}

	// The freq alias works too.
	alias := evaluator.NewDict()
	alias.Set("freq", evaluator.Int{Value: 1})
	preds, _ := model.Predict(NewFrame([]*evaluator.Dict{alias}))
	if !evaluator.DeepEqual(field(t, preds[0], "prediction"), evaluator.Int{Value: 1}) {
		t.Fatalf("alias row: %v", preds[0])
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	return port
}

func TestDeployServesModel(t *testing.T) {
	s := newSet()
	model, _ := s.AutoML(context.Background(), NewFrame(nil), "churn")

	port := freePort(t)
	endpoint := fmt.Sprintf("http://127.0.0.1:%s/predict", port)
	v, err := s.Deploy(model, endpoint)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	ctrl, ok := v.(*ServerController)
	if !ok {
		t.Fatalf("expected a controller, got %T", v)
	}
	defer ctrl.Stop(5 * time.Second)
	if ctrl.URL() != endpoint {
		t.Fatalf("controller url %q", ctrl.URL())
	}

	base := fmt.Sprintf("http://127.0.0.1:%s", port)
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"status":"ok"`) || !strings.Contains(string(body), "mock_automl") {
		t.Fatalf("health body %s", body)
	}

	payload := `{"rows": [{"purchase_frequency": 1, "income": 30000}]}`
	resp, err = http.Post(base+"/predict", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"prediction":1`) {
		t.Fatalf("predict body %s", body)
	}

	if !s.Undeploy(ctrl, 5*time.Second) {
		t.Fatal("undeploy should succeed")
	}
}

func TestDeployBindFailureReturnsEndpointDict(t *testing.T) {
	s := newSet()
	model, _ := s.AutoML(context.Background(), NewFrame(nil), "churn")

	// Hold the port so the deploy cannot bind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	endpoint := fmt.Sprintf("http://%s/predict", ln.Addr().String())

	v, err := s.Deploy(model, endpoint)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	d, ok := v.(*evaluator.Dict)
	if !ok {
		t.Fatalf("expected an endpoint dict, got %T", v)
	}
	if !evaluator.DeepEqual(field(t, d, "url"), evaluator.String{Value: endpoint}) {
		t.Fatalf("endpoint dict: %v", d)
	}
}

func TestUndeployNonController(t *testing.T) {
	s := newSet()
	if s.Undeploy(evaluator.String{Value: "http://127.0.0.1:9/predict"}, time.Second) {
		t.Fatal("plain values cannot be stopped")
	}
}

func TestColumnValue(t *testing.T) {
	if !evaluator.DeepEqual(columnValue([]byte("42")), evaluator.Int{Value: 42}) {
		t.Fatal("integer bytes")
	}
	if !evaluator.DeepEqual(columnValue([]byte("2.5")), evaluator.Float{Value: 2.5}) {
		t.Fatal("float bytes")
	}
	if !evaluator.DeepEqual(columnValue([]byte("abc")), evaluator.String{Value: "abc"}) {
		t.Fatal("string bytes")
	}
	if !evaluator.DeepEqual(columnValue(nil), evaluator.Null{}) {
		t.Fatal("null column")
	}
}
