// Package testutil provides shared test helpers for setting up data
// directories, databases and a wired trip service.
package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/storage"
	"github.com/starford/waypoint/internal/tripservice"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "waypoint-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestData creates a temporary data directory with a storage provider.
func TestData(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := storage.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	return dataDir, store
}

// Notifications records PublishUpdated calls.
type Notifications struct {
	mu  sync.Mutex
	ids []string
}

// PublishUpdated implements tripservice.Notifier.
func (n *Notifications) PublishUpdated(tripID string) {
	n.mu.Lock()
	n.ids = append(n.ids, tripID)
	n.mu.Unlock()
}

// IDs returns the announced trip ids in order.
func (n *Notifications) IDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

// TestService wires a trip service on a temp data dir and database.
func TestService(t *testing.T, opts ...tripservice.Option) (*tripservice.Service, *storage.FS, *index.DB, *Notifications) {
	t.Helper()
	_, store := TestData(t)
	db := TestDB(t)
	n := &Notifications{}
	opts = append([]tripservice.Option{tripservice.WithNotifier(n)}, opts...)
	return tripservice.NewService(store, db, opts...), store, db, n
}
