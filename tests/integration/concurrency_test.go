package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hammer the HTTP surface with parallel writers and assert the
// exact final state. The in-memory transactor serializes units of work the
// same way row locks do in PostgreSQL, so lost updates or phantom balances
// here would be real bugs in the service layer.

func TestConcurrentCredits(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAndLogin(t, "conc_credit_ops", "admin")
	accountID := app.createAccount(t, token, "Parallel Credits", "customer")

	const workers = 50
	const amount = int64(100)

	statuses := make(chan int, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status, _, err := app.doRaw(http.MethodPost, "/api/v1/transactions", token, map[string]any{
				"account_id":      accountID,
				"direction":       "credit",
				"amount":          amount,
				"source":          "add_money",
				"idempotency_key": fmt.Sprintf("CONC_CREDIT_%d", n),
			})
			if err != nil {
				errs <- err
				return
			}
			statuses <- status
		}(i)
	}
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	succeeded := 0
	for status := range statuses {
		require.Equal(t, http.StatusCreated, status)
		succeeded++
	}
	require.Equal(t, workers, succeeded)

	// Every credit landed exactly once.
	assert.Equal(t, int64(workers)*amount, app.getBalance(t, token, accountID))
	app.verifyConsistent(t, token, accountID)
}

func TestConcurrentOverspendDebits(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAndLogin(t, "conc_debit_ops", "admin")
	accountID := app.createAccount(t, token, "Parallel Debits", "customer")
	app.credit(t, token, accountID, 5_000, "CONC_FUNDING")

	// 10 debits of 1000 against a balance of 5000: exactly 5 can win.
	const workers = 10

	type outcome struct {
		status int
		code   string
	}
	outcomes := make(chan outcome, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status, raw, err := app.doRaw(http.MethodPost, "/api/v1/transactions", token, map[string]any{
				"account_id":      accountID,
				"direction":       "debit",
				"amount":          1_000,
				"source":          "booking_payment",
				"idempotency_key": fmt.Sprintf("CONC_DEBIT_%d", n),
			})
			if err != nil {
				errs <- err
				return
			}
			var body errorBody
			_ = json.Unmarshal(raw, &body)
			outcomes <- outcome{status: status, code: body.ErrorCode}
		}(i)
	}
	wg.Wait()
	close(outcomes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	created, refused := 0, 0
	for o := range outcomes {
		switch o.status {
		case http.StatusCreated:
			created++
		case http.StatusPaymentRequired:
			assert.Equal(t, "LED_001", o.code)
			refused++
		default:
			t.Fatalf("unexpected status %d (%s)", o.status, o.code)
		}
	}
	assert.Equal(t, 5, created)
	assert.Equal(t, 5, refused)

	// Refused debits must not leave partial writes behind.
	assert.Equal(t, int64(0), app.getBalance(t, token, accountID))
	app.verifyConsistent(t, token, accountID)
}

func TestConcurrentIdempotentReplay(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAndLogin(t, "conc_idem_ops", "admin")
	accountID := app.createAccount(t, token, "Parallel Replay", "customer")

	// 20 clients race the same idempotency key. Everyone gets the winning
	// entry back and the money moves once.
	const workers = 20

	entryIDs := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, raw, err := app.doRaw(http.MethodPost, "/api/v1/transactions", token, map[string]any{
				"account_id":      accountID,
				"direction":       "credit",
				"amount":          1_000,
				"source":          "add_money",
				"idempotency_key": "CONC_SHARED_KEY",
			})
			if err != nil {
				errs <- err
				return
			}
			if status != http.StatusCreated {
				errs <- fmt.Errorf("unexpected status %d: %s", status, raw)
				return
			}
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				errs <- err
				return
			}
			var entry struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(env.Data, &entry); err != nil {
				errs <- err
				return
			}
			entryIDs <- entry.ID
		}()
	}
	wg.Wait()
	close(entryIDs)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	unique := make(map[string]struct{})
	returned := 0
	for id := range entryIDs {
		unique[id] = struct{}{}
		returned++
	}
	require.Equal(t, workers, returned)
	assert.Len(t, unique, 1, "all callers must observe the same ledger entry")

	assert.Equal(t, int64(1_000), app.getBalance(t, token, accountID))
	app.verifyConsistent(t, token, accountID)

	// The ledger holds exactly one entry for the key.
	status, raw := app.do(t, http.MethodGet, "/api/v1/accounts/"+accountID+"/transactions", token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var list struct {
		Total int64 `json:"total"`
	}
	decodeData(t, raw, &list)
	assert.Equal(t, int64(1), list.Total)
}

func TestConcurrentReferralSettlement(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAndLogin(t, "conc_ref_ops", "admin")

	status, raw := app.do(t, http.MethodPut, "/api/v1/referrals/settings", token, map[string]any{
		"referral_type": "C2C",
		"referrer_bonus": map[string]any{
			"enabled":     false,
			"type":        "amount",
			"value":       0,
			"credit_time": "on_first_booking",
		},
		"referee_bonus": map[string]any{
			"enabled":     true,
			"type":        "amount",
			"value":       300,
			"credit_time": "on_signup",
		},
		"usage_limit_mode":  "unlimited",
		"payout_cycle_days": 7,
	})
	require.Equal(t, http.StatusOK, status, string(raw))

	referrerID := app.createAccount(t, token, "Referrer", "customer")
	refereeID := app.createAccount(t, token, "Referee", "customer")

	status, raw = app.do(t, http.MethodPost, "/api/v1/referrals", token, map[string]any{
		"referral_type": "C2C",
		"referrer_id":   referrerID,
		"referee_id":    refereeID,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	// The same completion event arrives 10 times at once. The bonus must be
	// credited exactly once.
	const workers = 10

	successes := make(chan bool, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, raw, err := app.doRaw(http.MethodPost, "/api/v1/referrals/events", token, map[string]any{
				"account_id": refereeID,
				"event_type": "signup",
			})
			if err != nil {
				errs <- err
				return
			}
			if status != http.StatusOK {
				errs <- fmt.Errorf("unexpected status %d: %s", status, raw)
				return
			}
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				errs <- err
				return
			}
			var result struct {
				Success bool `json:"success"`
			}
			if err := json.Unmarshal(env.Data, &result); err != nil {
				errs <- err
				return
			}
			successes <- result.Success
		}()
	}
	wg.Wait()
	close(successes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	credited := 0
	for ok := range successes {
		if ok {
			credited++
		}
	}
	assert.Equal(t, 1, credited, "exactly one event may settle the bonus")

	assert.Equal(t, int64(300), app.getBalance(t, token, refereeID))
	assert.Equal(t, int64(0), app.getBalance(t, token, referrerID))
	app.verifyConsistent(t, token, refereeID)
}
