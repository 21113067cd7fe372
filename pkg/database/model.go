package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Crash represents a record in the public.crashes table
type Crash struct {
	ID        int       `gorm:"primaryKey;column:id"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	Target    string    `gorm:"column:target;not null;index"`
	Sanitizer string    `gorm:"column:sanitizer;not null"`
	Triple    string    `gorm:"column:triple;not null"`
	Digest    string    `gorm:"column:digest;not null;uniqueIndex"`
	Path      string    `gorm:"column:path;not null"`
	Arguments Arguments `gorm:"column:arguments;type:jsonb"`
}

// Arguments holds the decoded Move literals of a crashing input.
type Arguments []string

// Value implements the driver.Valuer interface for the Arguments type
func (a Arguments) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for the Arguments type
func (a *Arguments) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, a)
}
