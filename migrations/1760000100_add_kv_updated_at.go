package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	// updated_at is informational only; readers never depend on it
	Register(1760000100, "add_kv_updated_at", func(b dbx.Builder) error {
		_, err := b.NewQuery("ALTER TABLE kv_entries ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''").Execute()
		return err
	}, func(b dbx.Builder) error {
		_, err := b.NewQuery("ALTER TABLE kv_entries DROP COLUMN updated_at").Execute()
		return err
	})
}
