package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username: "  ops-admin  ",
		Password: "  pass1234  ",
		Role:     " admin ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "ops-admin", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "admin", req.Role)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := FailWithdrawalRequest{
		Status: "failed",
		Reason: "payout bounced <script>alert('x')</script>",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_NestedBankDetails(t *testing.T) {
	req := SubmitWithdrawalRequest{
		AccountID: "4b4fc7e8-0000-0000-0000-000000000001",
		Amount:    5000,
		Bank: BankDetailsDTO{
			AccountHolder: "  Asha Pillai  ",
			UPIID:         " asha@okbank ",
		},
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Asha Pillai", req.Bank.AccountHolder)
	assert.Equal(t, "asha@okbank", req.Bank.UPIID)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	ref := "  4b4fc7e8-0000-0000-0000-000000000002  "
	req := CreateAccountRequest{
		OwnerName:  "Dr. Rao",
		Role:       "doctor",
		ReferredBy: &ref,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "4b4fc7e8-0000-0000-0000-000000000002", *req.ReferredBy)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := CreateAccountRequest{
		OwnerName: "Walk-in Customer",
		Role:      "customer",
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.ReferredBy)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"WTX_1700000000000_AB12CD34EF",
		"WDPAY_WD_1_TEST",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"key 001",     // space
		"key<001>",    // angle brackets
		"key;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"key\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestUPI_Valid(t *testing.T) {
	cases := []string{
		"asha@okbank",
		"vendor.payments@upi",
		"a_b-c.d@bank",
	}
	for _, tc := range cases {
		assert.True(t, upiRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestUPI_Invalid(t *testing.T) {
	cases := []string{
		"no-at-sign",
		"@bank",
		"user@",
		"user@b4nk1", // provider must be alphabetic
		"user name@bank",
	}
	for _, tc := range cases {
		assert.False(t, upiRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
