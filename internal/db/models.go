package db

import (
	"time"
)

type SessionToken struct {
	TokenKey  string
	Token     string
	UpdatedAt time.Time
}
