package migrate

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the SQL migrations compiled into the binary, rooted at the
// migrations directory.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return sub
}
