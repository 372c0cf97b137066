package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cleanbites/backend/internal/config"
	"github.com/cleanbites/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	var logs bytes.Buffer
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"), config.NewTestLogger(&logs, "ERROR"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserDetails_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetUserDetails(ctx, "user_1")
	assert.True(t, errors.Is(err, ErrNotFound))

	details := &models.UserDetails{
		UserID: "user_1", Name: "Ada", Age: "34", Height: "170", Weight: "60",
		Gender: "Female", HealthIssue: "Diabetes", Allergy: "Peanuts", Goal: "Weight Loss",
	}
	require.NoError(t, db.SaveUserDetails(ctx, details))

	got, err := db.GetUserDetails(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "Diabetes", got.HealthIssue)
	assert.False(t, got.CreatedAt.IsZero())
	created := got.CreatedAt

	update := &models.UserDetails{UserID: "user_1", Name: "Ada L.", Goal: "Maintain"}
	require.NoError(t, db.SaveUserDetails(ctx, update))

	got, err = db.GetUserDetails(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, "Maintain", got.Goal)
	assert.Empty(t, got.Allergy)
	assert.True(t, created.Equal(got.CreatedAt), "creation time survives updates")
}

func TestFoodSubmission_LatestPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetFoodSubmission(ctx, "user_1")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.SaveFoodSubmission(ctx, &models.FoodSubmission{
		UserID: "user_1", ProductName: "Cola", Ingredients: "sugar",
	}))
	require.NoError(t, db.SaveFoodSubmission(ctx, &models.FoodSubmission{
		UserID: "user_2", ProductName: "Water", NutritionInfo: "0 kcal",
	}))
	require.NoError(t, db.SaveFoodSubmission(ctx, &models.FoodSubmission{
		UserID: "user_1", ProductName: "Crisps", InfoImage: []byte{1, 2, 3}, ImageType: "image/png",
	}))

	got, err := db.GetFoodSubmission(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Crisps", got.ProductName)
	assert.Empty(t, got.Ingredients)
	assert.Equal(t, []byte{1, 2, 3}, got.InfoImage)
	assert.Equal(t, "image/png", got.ImageType)

	got, err = db.GetFoodSubmission(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, "Water", got.ProductName)
	assert.Nil(t, got.InfoImage)
}

func TestAnalyses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"Cola", "Crisps", "Apple"} {
		rec := &models.AnalysisRecord{
			UserID:      "user_1",
			ProductName: name,
			Payload:     json.RawMessage(`{"processed": "Low"}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.SaveAnalysis(ctx, rec))
		assert.NotEmpty(t, rec.ID)
	}
	require.NoError(t, db.SaveAnalysis(ctx, &models.AnalysisRecord{
		UserID: "user_2", ProductName: "Tea", Payload: json.RawMessage(`{}`),
	}))

	recent, err := db.GetRecentAnalyses(ctx, "user_1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Apple", recent[0].ProductName)
	assert.Equal(t, "Crisps", recent[1].ProductName)
	assert.True(t, base.Add(2*time.Minute).Equal(recent[0].CreatedAt))

	got, err := db.GetAnalysis(ctx, recent[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Crisps", got.ProductName)
	assert.JSONEq(t, `{"processed": "Low"}`, string(got.Payload))

	_, err = db.GetAnalysis(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	none, err := db.GetRecentAnalyses(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestConcurrentWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const writers, perWriter = 32, 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter*2)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			userID := fmt.Sprintf("user_%d", w)
			for i := 0; i < perWriter; i++ {
				errs <- db.SaveAnalysis(ctx, &models.AnalysisRecord{
					UserID: userID, ProductName: "Cola", Payload: json.RawMessage(`{}`),
				})
				errs <- db.SaveFoodSubmission(ctx, &models.FoodSubmission{
					UserID: userID, ProductName: "Cola", Ingredients: "sugar",
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	recent, err := db.GetRecentAnalyses(ctx, "user_0", 100)
	require.NoError(t, err)
	assert.Len(t, recent, perWriter)
}

func TestConnectionPragmas(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	conns := make([]*sql.Conn, 4)
	for i := range conns {
		conn, err := db.db.Conn(ctx)
		require.NoError(t, err)
		conns[i] = conn
	}
	for _, conn := range conns {
		var timeout, foreignKeys int
		var journal string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
		assert.Equal(t, 5000, timeout)
		assert.Equal(t, 1, foreignKeys)
		assert.Equal(t, "wal", journal)
		require.NoError(t, conn.Close())
	}
}
