package infrastructure

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	database "github.com/pjanicki/RecurringLedger/db"
	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

// Spins up a disposable Postgres and drives the real repositories through
// the schema the engine runs on, most importantly the partial unique index
// that backs idempotent materialization. Skipped when Docker is unavailable.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("recurring_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("could not get connection string: %v", err)
	}
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("could not open connection: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	service := &database.DBService{DB: db}
	if err := service.RunMigrations(); err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	return db
}

func storedRule(userID string) domain.RecurringRule {
	count := 3
	return domain.RecurringRule{
		ID:              uuid.NewString(),
		UserID:          userID,
		Frequency:       domain.FrequencyMonthly,
		Interval:        1,
		StartDate:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		OccurrenceCount: &count,
		Template: domain.TransactionTemplate{
			Name:   "Rent",
			Amount: 1000,
			Tags:   []string{"housing"},
			Shape:  domain.ExpenseShape{AccountID: uuid.NewString()},
		},
		IsActive: true,
		Version:  1,
	}
}

func generatedEntry(rule *domain.RecurringRule, date time.Time) domain.LedgerEntry {
	entry := domain.NewEntryFromTemplate(rule, date)
	entry.ID = uuid.NewString()
	return entry
}

func TestPostgresRuleRepositoryRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	repo := NewRuleRepository(db)

	userID := uuid.NewString()
	rule := storedRule(userID)
	assert.NoError(t, repo.Save(rule, nil))

	found, err := repo.FindByID(rule.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, found) {
		assert.Equal(t, rule.UserID, found.UserID)
		assert.Equal(t, domain.FrequencyMonthly, found.Frequency)
		assert.Equal(t, 3, *found.OccurrenceCount)
		assert.Nil(t, found.EndDate)
		assert.Equal(t, "Rent", found.Template.Name)
		shape, ok := found.Template.Shape.(domain.ExpenseShape)
		assert.True(t, ok)
		assert.NotEmpty(t, shape.AccountID)
	}

	rule.Version = 2
	rule.Template.Amount = 1200
	assert.NoError(t, repo.Update(rule, nil))
	found, err = repo.FindByID(rule.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, found.Version)
	assert.Equal(t, 1200.0, found.Template.Amount)

	byUser, err := repo.FindByUser(userID)
	assert.NoError(t, err)
	assert.Len(t, byUser, 1)

	// the watermark advances but never rewinds, and neither it nor the
	// active flag disturbs the rest of the row
	watermark := time.Date(2026, time.February, 10, 23, 59, 59, 0, time.UTC)
	assert.NoError(t, repo.AdvanceWatermark(rule.ID, watermark, nil))
	assert.NoError(t, repo.AdvanceWatermark(rule.ID, watermark.AddDate(0, 0, -10), nil))
	found, err = repo.FindByID(rule.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, found.LastMaterializedDate) {
		assert.True(t, found.LastMaterializedDate.Equal(watermark))
	}

	assert.NoError(t, repo.SetActive(rule.ID, false, nil))
	found, err = repo.FindByID(rule.ID)
	assert.NoError(t, err)
	assert.False(t, found.IsActive)
	assert.Equal(t, 2, found.Version)
	assert.Equal(t, 1200.0, found.Template.Amount)

	assert.NoError(t, repo.Delete(rule.ID, nil))
	found, err = repo.FindByID(rule.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestPostgresBatchInsertSkipsDuplicateDates(t *testing.T) {
	db := setupPostgres(t)
	rules := NewRuleRepository(db)
	entries := NewEntryRepository(db)

	rule := storedRule(uuid.NewString())
	assert.NoError(t, rules.Save(rule, nil))

	batch := []domain.LedgerEntry{
		generatedEntry(&rule, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
		generatedEntry(&rule, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)),
	}
	inserted, err := entries.SaveBatchSkipConflicts(batch, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// same dates with fresh IDs collide on the partial unique index
	rerun := []domain.LedgerEntry{
		generatedEntry(&rule, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
		generatedEntry(&rule, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}
	inserted, err = entries.SaveBatchSkipConflicts(rerun, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, inserted)

	stored, err := entries.FindGeneratedByRule(rule.ID)
	assert.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestPostgresEntryQueriesAndDetach(t *testing.T) {
	db := setupPostgres(t)
	rules := NewRuleRepository(db)
	entries := NewEntryRepository(db)
	overrides := NewOverrideRepository(db)

	rule := storedRule(uuid.NewString())
	assert.NoError(t, rules.Save(rule, nil))

	batch := []domain.LedgerEntry{
		generatedEntry(&rule, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
		generatedEntry(&rule, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)),
		generatedEntry(&rule, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}
	_, err := entries.SaveBatchSkipConflicts(batch, nil)
	assert.NoError(t, err)

	inRange, err := entries.FindGeneratedByRuleInRange(rule.ID,
		time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Len(t, inRange, 1)

	fromDate, err := entries.FindGeneratedByRuleFromDate(rule.ID, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Len(t, fromDate, 2)

	override := domain.FieldOverride{
		EntryID:         batch[0].ID,
		Field:           domain.FieldAmount,
		OriginalValue:   "1000",
		OverriddenValue: "500",
	}
	assert.NoError(t, overrides.Record(override, nil))

	// upsert keeps the first original value
	override.OriginalValue = "9999"
	override.OverriddenValue = "700"
	assert.NoError(t, overrides.Record(override, nil))
	records, err := overrides.FindByEntry(batch[0].ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "1000", records[0].OriginalValue)
	assert.Equal(t, "700", records[0].OverriddenValue)

	assert.NoError(t, overrides.DeleteByRule(rule.ID, nil))
	records, err = overrides.FindByEntry(batch[0].ID)
	assert.NoError(t, err)
	assert.Empty(t, records)

	assert.NoError(t, entries.DetachFromRule(rule.ID, nil))
	detached, err := entries.FindByID(batch[0].ID)
	assert.NoError(t, err)
	if assert.NotNil(t, detached) {
		assert.Nil(t, detached.RuleID)
		assert.False(t, detached.IsGenerated)
		assert.Empty(t, detached.OverriddenFields)
	}
	remaining, err := entries.FindGeneratedByRule(rule.ID)
	assert.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPostgresTransactionRollback(t *testing.T) {
	db := setupPostgres(t)
	rules := NewRuleRepository(db)

	rule := storedRule(uuid.NewString())
	tx, err := rules.BeginTransaction()
	assert.NoError(t, err)
	assert.NoError(t, rules.Save(rule, tx))
	assert.NoError(t, tx.Rollback())

	found, err := rules.FindByID(rule.ID)
	assert.NoError(t, err)
	assert.Nil(t, found)
}
