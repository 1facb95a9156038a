package dbtest

import (
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db"
)

// Recorder captures the SQL text of every statement gorm executes on a
// client, in execution order.
type Recorder struct {
	mu         sync.Mutex
	statements []string
}

// RecordStatements hooks a Recorder into the client's query, row, raw and
// update callbacks.
func RecordStatements(t *testing.T, client *db.Client) *Recorder {
	t.Helper()
	rec := &Recorder{}
	capture := func(tx *gorm.DB) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.statements = append(rec.statements, tx.Statement.SQL.String())
	}

	cb := client.DB().Callback()
	register := []error{
		cb.Query().After("gorm:query").Register("dbtest:record_query", capture),
		cb.Row().After("gorm:row").Register("dbtest:record_row", capture),
		cb.Raw().After("gorm:raw").Register("dbtest:record_raw", capture),
		cb.Update().After("gorm:update").Register("dbtest:record_update", capture),
	}
	for _, err := range register {
		if err != nil {
			t.Fatalf("register statement recorder: %v", err)
		}
	}
	return rec
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = nil
}

// Statements returns the recorded SQL, whitespace-collapsed.
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statements))
	for i, stmt := range r.statements {
		out[i] = strings.Join(strings.Fields(stmt), " ")
	}
	return out
}
