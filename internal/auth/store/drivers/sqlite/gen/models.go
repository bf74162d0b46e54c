package gen

import (
	"time"
)

type SecureItem struct {
	Namespace string
	Key       string
	Value     []byte
	UpdatedAt time.Time
}
