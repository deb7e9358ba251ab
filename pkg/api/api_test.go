package api

import (
	"encoding/json"
	"testing"
)

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{name: "number", input: `{"id": 1234}`, want: "1234"},
		{name: "string", input: `{"id": "5678"}`, want: "5678"},
		{name: "null", input: `{"id": null}`, want: ""},
		{name: "missing", input: `{"message": "bad token"}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp SubmitResponse
			if err := json.Unmarshal([]byte(tt.input), &resp); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.ID != tt.want {
				t.Errorf("ID = %q, want %q", resp.ID, tt.want)
			}
		})
	}
}

func TestID_UnmarshalJSON_Invalid(t *testing.T) {
	var resp SubmitResponse
	if err := json.Unmarshal([]byte(`{"id": true}`), &resp); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestProcessStatus_ResultOfType(t *testing.T) {
	status := ProcessStatus{
		Results: []Result{
			{Name: "out.zip", Type: "zip", URL: "http://x/out.zip"},
			{Name: "report.pdf", Type: "pdf", URL: "http://x/report.pdf"},
		},
	}

	r, ok := status.ResultOfType(ResultTypeZip)
	if !ok {
		t.Fatal("expected zip result to be found")
	}
	if r.Name != "out.zip" {
		t.Errorf("expected out.zip, got %s", r.Name)
	}

	if _, ok := status.ResultOfType("ZIP"); ok {
		t.Error("type match must be exact")
	}
}

func TestParseDynamics(t *testing.T) {
	if d, err := ParseDynamics(""); err != nil || d != DynamicsDynamic {
		t.Errorf("ParseDynamics(\"\") = %v, %v; want dynamic", d, err)
	}
	if d, err := ParseDynamics("static"); err != nil || d != DynamicsStatic {
		t.Errorf("ParseDynamics(static) = %v, %v", d, err)
	}
	if _, err := ParseDynamics("kinematic"); err == nil {
		t.Error("expected error for unknown dynamics")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"auto", "PPP", "PPK", "SPP"} {
		if _, err := ParseStrategy(s); err != nil {
			t.Errorf("ParseStrategy(%s) unexpected error: %v", s, err)
		}
	}
	if s, _ := ParseStrategy(""); s != StrategyAuto {
		t.Errorf("expected empty strategy to mean auto, got %s", s)
	}
	if _, err := ParseStrategy("ppp"); err == nil {
		t.Error("strategy names are case-sensitive")
	}
}

func TestBasePosition(t *testing.T) {
	pos, err := NewBasePosition([]float64{41.5, 2.25, 120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pos.String(); got != "41.5,2.25,120" {
		t.Errorf("String() = %s, want 41.5,2.25,120", got)
	}

	if _, err := NewBasePosition([]float64{1, 2}); err == nil {
		t.Error("expected error for 2 values")
	}
}
