package domain

import "testing"

func TestQuotaReport_Outputs(t *testing.T) {
	n := 42
	r := QuotaReport{StatusCode: 200, RawBody: []byte(`{"remainingCalls":42}`), RemainingCalls: &n}

	out := r.Outputs()
	if out["status_code"] != 200 || out["body_bytes"] != len(r.RawBody) {
		t.Errorf("outputs = %v", out)
	}
	if out["remaining_calls"] != 42 {
		t.Errorf("remaining_calls = %v", out["remaining_calls"])
	}

	empty := QuotaReport{StatusCode: 200, RawBody: []byte(`{}`)}
	if _, ok := empty.Outputs()["remaining_calls"]; ok {
		t.Error("remaining_calls must be absent when not parsed")
	}
	if _, ok := empty.Remaining(); ok {
		t.Error("Remaining must report unknown")
	}
}

func TestQuotaReport_Below(t *testing.T) {
	n := 3
	r := QuotaReport{RemainingCalls: &n}

	if !r.Below(5) {
		t.Error("3 < 5")
	}
	if r.Below(3) {
		t.Error("3 is not below 3")
	}
	if r.Below(0) {
		t.Error("zero threshold disables the check")
	}
	if (QuotaReport{}).Below(5) {
		t.Error("unknown remaining is never below")
	}
}
