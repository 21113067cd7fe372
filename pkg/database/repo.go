package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddCrashes inserts crash records, skipping digests already stored.
func AddCrashes(ctx context.Context, db *gorm.DB, crashes []*Crash) error {
	if len(crashes) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(crashes).Error
}

func NewCrash(target, sanitizer, triple, digest, path string, args []string) *Crash {
	return &Crash{
		CreatedAt: time.Now(),
		Target:    target,
		Sanitizer: sanitizer,
		Triple:    triple,
		Digest:    digest,
		Path:      path,
		Arguments: args,
	}
}
