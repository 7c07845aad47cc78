// Package inmemdb is a map-backed implementation of the core repositories,
// used by tests and local development. Atomic sections run the callback
// directly and provide no rollback.
package inmemdb

import (
	"sync"

	"github.com/trezcool/begi/core/audit"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/checklist"
	"github.com/trezcool/begi/core/schedule"
)

type DB struct {
	mutex sync.RWMutex
	seq   int

	children     map[int]catalog.Child
	subjects     map[int]catalog.Subject
	materials    map[int]catalog.Material
	requirements map[int]catalog.Requirement

	templates map[int]schedule.Template
	versions  map[int]schedule.Version
	blocks    map[int]schedule.Block
	links     map[int]schedule.MaterialLink

	instances map[int]checklist.Instance
	items     map[int]checklist.ItemState
	acks      map[int]checklist.Acknowledgment

	events []audit.Event
}

func NewDB() *DB {
	return &DB{
		children:     make(map[int]catalog.Child),
		subjects:     make(map[int]catalog.Subject),
		materials:    make(map[int]catalog.Material),
		requirements: make(map[int]catalog.Requirement),
		templates:    make(map[int]schedule.Template),
		versions:     make(map[int]schedule.Version),
		blocks:       make(map[int]schedule.Block),
		links:        make(map[int]schedule.MaterialLink),
		instances:    make(map[int]checklist.Instance),
		items:        make(map[int]checklist.ItemState),
		acks:         make(map[int]checklist.Acknowledgment),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int {
	db.seq++
	return db.seq
}
