//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihan-dev/school-core-api/internal/models"
	appErrors "github.com/raihan-dev/school-core-api/pkg/errors"
)

// Requires a Postgres with scripts/schema.sql applied:
//   TEST_DATABASE_DSN=postgres://... go test -tags integration ./internal/repository/...

func integrationDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLedgerFixtures(t *testing.T, db *sqlx.DB) (studentID string) {
	t.Helper()
	ctx := context.Background()
	parentID := uuid.NewString()
	studentID = uuid.NewString()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
         VALUES ($1, $2, 'x', 'Parent', 'parent', TRUE, $3, $3)`,
		parentID, uuid.NewString()+"@test.local", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO students (id, name, parent_id, active, created_at, updated_at)
         VALUES ($1, 'Student', $2, TRUE, $3, $3)`,
		studentID, parentID, now)
	require.NoError(t, err)
	return studentID
}

func TestPaymentRepositoryConcurrentCreateLedger(t *testing.T) {
	db := integrationDB(t)
	repo := NewPaymentRepository(db)
	studentID := seedLedgerFixtures(t, db)
	year := "2090-2091"

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.CreateLedger(context.Background(), &models.Payment{
				StudentID:    studentID,
				AcademicYear: year,
				TotalFees:    500000,
			}, nil)
		}(i)
	}
	wg.Wait()

	var duplicates int
	for _, err := range results {
		if errors.Is(err, appErrors.ErrDuplicateLedger) {
			duplicates++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, duplicates)
}

func TestPaymentRepositoryConcurrentAppends(t *testing.T) {
	db := integrationDB(t)
	repo := NewPaymentRepository(db)
	studentID := seedLedgerFixtures(t, db)

	ledger, err := repo.CreateLedger(context.Background(), &models.Payment{
		StudentID:    studentID,
		AcademicYear: "2091-2092",
		TotalFees:    100000,
	}, nil)
	require.NoError(t, err)

	// Each append fits on its own; together they exceed the fee total. The
	// header row lock serializes them: one commits, the other re-reads the
	// committed sum and is rejected.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.AppendEntry(context.Background(), ledger.ID, &models.PaymentEntry{
				Amount: 60000,
				Date:   time.Now().UTC(),
				Method: models.PaymentMethodCash,
			})
		}(i)
	}
	wg.Wait()

	var rejected int
	for _, err := range results {
		if errors.Is(err, appErrors.ErrOverpayment) {
			rejected++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, rejected)

	final, err := repo.FindByID(context.Background(), ledger.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), final.PaidAmount)
	assert.Equal(t, models.SumEntries(final.Entries), final.PaidAmount)
}
