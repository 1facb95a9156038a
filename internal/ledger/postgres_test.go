//go:build db
// +build db

package ledger

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/db/models"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/migrate"
)

func openPostgres(t *testing.T) *db.Client {
	t.Helper()

	dsn := os.Getenv("FWB_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("FWB_TEST_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{NowFunc: db.NowUTC})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Run(context.Background(), sqlDB, "../../pkg/migrate/migrations", "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.Wrap(conn)
}

func TestPostgresParallelDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	client := openPostgres(t)
	svc, err := NewService(NewRepository(client.DB()), nil)
	require.NoError(t, err)
	team := seedTeam(t, client, "1000.00")
	t.Cleanup(func() {
		client.DB().Where("team_id = ?", team.ID).Delete(&models.LedgerEvent{})
		client.DB().Where("id = ?", team.ID).Delete(&models.Team{})
	})

	const workers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := debit(ctx, client, svc, team.ID, "100.00")
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeInsufficient) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assertBalances(t, loadTeam(t, client, team.ID), "1000.00", "1000.00", "0.00")
}
