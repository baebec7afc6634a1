// Package inmemdb is an in-memory implementation of the repositories, used in tests and memory runs.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/identity"
	"github.com/trezcool/shule/core/roster"
	"github.com/trezcool/shule/core/school"
)

type txKey struct{}

type tables struct {
	identities  map[string]identity.Identity
	schools     map[string]school.School
	requests    map[string]school.RegistrationRequest
	grades      map[string]academic.Grade
	sections    map[string]academic.Section
	subjects    map[string]academic.Subject
	teachers    map[string]roster.Teacher
	parents     map[string]roster.Parent
	students    map[string]roster.Student
	assignments map[string]roster.Assignment
}

func newTables() tables {
	return tables{
		identities:  make(map[string]identity.Identity),
		schools:     make(map[string]school.School),
		requests:    make(map[string]school.RegistrationRequest),
		grades:      make(map[string]academic.Grade),
		sections:    make(map[string]academic.Section),
		subjects:    make(map[string]academic.Subject),
		teachers:    make(map[string]roster.Teacher),
		parents:     make(map[string]roster.Parent),
		students:    make(map[string]roster.Student),
		assignments: make(map[string]roster.Assignment),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.identities {
		c.identities[k] = v
	}
	for k, v := range t.schools {
		c.schools[k] = v
	}
	for k, v := range t.requests {
		c.requests[k] = v
	}
	for k, v := range t.grades {
		c.grades[k] = v
	}
	for k, v := range t.sections {
		c.sections[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.parents {
		c.parents[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	return c
}

// DB holds all tables in memory.
// Transactions are serialized by txMutex; a failed transaction restores the tables as they were when it began.
// Writes outside a transaction take txMutex too, so a rollback never drops them.
type DB struct {
	txMutex sync.Mutex
	mutex   sync.RWMutex
	t       tables
}

var _ core.TxManager = (*DB)(nil)

func NewDB() *DB {
	return &DB{t: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t = newTables()
}

func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) == db {
		return fn(ctx) // join
	}

	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.RLock()
	snapshot := db.t.clone()
	db.mutex.RUnlock()

	committed := false
	defer func() {
		if !committed {
			db.mutex.Lock()
			db.t = snapshot
			db.mutex.Unlock()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockWrite locks the tables for a write and returns the unlock func.
func (db *DB) lockWrite(ctx context.Context) func() {
	inTx := ctx.Value(txKey{}) == db
	if !inTx {
		db.txMutex.Lock()
	}
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		if !inTx {
			db.txMutex.Unlock()
		}
	}
}

func newID() string {
	return uuid.New().String()
}
