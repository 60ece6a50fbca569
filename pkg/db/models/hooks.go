package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller did not provide one. Postgres also
// defaults ids with gen_random_uuid(), but sqlite has no equivalent.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
