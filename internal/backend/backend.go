// Package backend selects and opens the persistence layer shared by the API
// server and the refresh worker.
package backend

import (
	"fmt"
	"slices"
	"strings"

	"costindex/internal/ports"
)

// Store is every port a binary needs from persistence.
type Store interface {
	ports.BasketStore
	ports.SeriesReader
	ports.SeriesWriter
	ports.SeriesLister
	ports.SeriesRevisioner
	ports.Pinger
}

// Kind names a Store implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindSQLite Kind = "sqlite"
)

var kinds = []Kind{KindMemory, KindSQLite}

// ParseKind accepts a backend name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(kinds, k) {
		return "", fmt.Errorf("unknown backend %q: must be one of %v", s, kinds)
	}
	return k, nil
}

type Config struct {
	Kind       Kind
	SQLitePath string
	// SeedDir preloads the memory store from <SERIES_ID>.csv files.
	SeedDir string
}

func (c Config) Validate() error {
	if !slices.Contains(kinds, c.Kind) {
		return fmt.Errorf("invalid backend kind %q", c.Kind)
	}
	if c.Kind == KindSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite backend requires a database path")
	}
	return nil
}

// Opened is a ready Store and the function releasing its resources.
type Opened struct {
	Store Store
	Close func() error
}
