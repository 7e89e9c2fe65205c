package schema

import (
	"errors"
	"strings"
	"testing"
)

func validBanUser() map[string]any {
	return map[string]any{
		"userId":   "user1234567",
		"reason":   "spam and abuse",
		"duration": float64(30),
	}
}

func fieldCode(t *testing.T, err error, field string) (Code, bool) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, fe := range ve.Fields {
		if fe.Field == field {
			return fe.Code, true
		}
	}
	return "", false
}

func TestValidateBanUserAccepts(t *testing.T) {
	r := MustRegistry()

	out, err := r.Validate("ban-user", validBanUser())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := out["duration"].(int64); !ok {
		t.Fatalf("duration not coerced to int64: %T", out["duration"])
	}
	if out["userId"] != "user1234567" {
		t.Fatalf("unexpected userId: %v", out["userId"])
	}
}

func TestValidateUnknownFieldFailsClosed(t *testing.T) {
	r := MustRegistry()

	payload := validBanUser()
	payload["isAdmin"] = true

	_, err := r.Validate("ban-user", payload)
	if code, ok := fieldCode(t, err, "isAdmin"); !ok || code != CodeUnknownField {
		t.Fatalf("expected unknown_field for isAdmin, got %v (%v)", code, err)
	}
}

func TestValidateMissingField(t *testing.T) {
	r := MustRegistry()

	payload := validBanUser()
	delete(payload, "reason")

	_, err := r.Validate("ban-user", payload)
	if code, ok := fieldCode(t, err, "reason"); !ok || code != CodeMissingField {
		t.Fatalf("expected missing_field for reason, got %v (%v)", code, err)
	}
}

func TestValidateTypeMismatchOnOperatorShapedValue(t *testing.T) {
	r := MustRegistry()

	payload := validBanUser()
	payload["userId"] = map[string]any{"$ne": nil}

	_, err := r.Validate("ban-user", payload)
	if code, ok := fieldCode(t, err, "userId"); !ok || code != CodeTypeMismatch {
		t.Fatalf("expected type_mismatch for userId, got %v (%v)", code, err)
	}
}

func TestValidateStringBoundsInclusive(t *testing.T) {
	r := MustRegistry()

	cases := []struct {
		name   string
		userID string
		valid  bool
	}{
		{"at min", strings.Repeat("u", 10), true},
		{"at max", strings.Repeat("u", 100), true},
		{"below min", strings.Repeat("u", 9), false},
		{"above max", strings.Repeat("u", 101), false},
	}
	for _, tc := range cases {
		payload := validBanUser()
		payload["userId"] = tc.userID
		_, err := r.Validate("ban-user", payload)
		if tc.valid && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.valid {
			if code, ok := fieldCode(t, err, "userId"); !ok || code != CodeOutOfRange {
				t.Errorf("%s: expected out_of_range, got %v", tc.name, code)
			}
		}
	}
}

func TestValidateIntegerBoundsInclusive(t *testing.T) {
	r := MustRegistry()

	cases := []struct {
		duration float64
		valid    bool
	}{
		{1, true},
		{36500, true},
		{0, false},
		{36501, false},
	}
	for _, tc := range cases {
		payload := validBanUser()
		payload["duration"] = tc.duration
		_, err := r.Validate("ban-user", payload)
		if tc.valid && err != nil {
			t.Errorf("duration %v: unexpected error: %v", tc.duration, err)
		}
		if !tc.valid {
			if code, ok := fieldCode(t, err, "duration"); !ok || code != CodeOutOfRange {
				t.Errorf("duration %v: expected out_of_range, got %v", tc.duration, code)
			}
		}
	}
}

func TestValidateNonIntegerDuration(t *testing.T) {
	r := MustRegistry()

	payload := validBanUser()
	payload["duration"] = 30.5

	_, err := r.Validate("ban-user", payload)
	if code, ok := fieldCode(t, err, "duration"); !ok || code != CodeTypeMismatch {
		t.Fatalf("expected type_mismatch for fractional duration, got %v (%v)", code, err)
	}
}

func TestValidatePlanPattern(t *testing.T) {
	r := MustRegistry()

	good := map[string]any{"plan": "pro", "validityDays": float64(365)}
	if _, err := r.Validate("create-license", good); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}

	bad := map[string]any{"plan": "gold", "validityDays": float64(365)}
	_, err := r.Validate("create-license", bad)
	if code, ok := fieldCode(t, err, "plan"); !ok || code != CodePatternMismatch {
		t.Fatalf("expected pattern_mismatch for plan, got %v (%v)", code, err)
	}
}

func TestValidateIPAddressPattern(t *testing.T) {
	r := MustRegistry()

	base := func(ip string) map[string]any {
		return map[string]any{
			"ipAddress": ip,
			"reason":    "credential stuffing",
			"duration":  float64(7),
		}
	}

	valid := []string{
		"203.0.113.7",
		"2001:db8::1",
		"::1",
		"fe80::1",
		"2001:db8::",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
	}
	for _, ip := range valid {
		if _, err := r.Validate("ban-ip", base(ip)); err != nil {
			t.Errorf("valid address %s rejected: %v", ip, err)
		}
	}
	for _, ip := range []string{"999.1.1.1", "not-an-address", "12", "ab", "::::", "1::2::3"} {
		_, err := r.Validate("ban-ip", base(ip))
		if code, ok := fieldCode(t, err, "ipAddress"); !ok || code != CodePatternMismatch {
			t.Errorf("address %s: expected pattern_mismatch, got %v", ip, code)
		}
	}
}

func TestValidateUnknownOperation(t *testing.T) {
	r := MustRegistry()

	_, err := r.Validate("drop-tables", map[string]any{})
	if err == nil {
		t.Fatal("unknown operation accepted")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Fatal("unknown operation should not be a field-level error")
	}
}

func TestValidateCollectsAllFieldErrors(t *testing.T) {
	r := MustRegistry()

	payload := map[string]any{
		"userId":   "short",
		"extra":    1,
		"reason":   "ok reason",
		"duration": float64(0),
	}
	_, err := r.Validate("ban-user", payload)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Fields) < 3 {
		t.Fatalf("expected at least 3 field errors, got %+v", ve.Fields)
	}
}
