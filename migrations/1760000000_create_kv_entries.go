package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(1760000000, "create_kv_entries", func(b dbx.Builder) error {
		_, err := b.NewQuery(`CREATE TABLE IF NOT EXISTS kv_entries (
			key   TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		)`).Execute()
		return err
	}, func(b dbx.Builder) error {
		_, err := b.NewQuery("DROP TABLE IF EXISTS kv_entries").Execute()
		return err
	})
}
