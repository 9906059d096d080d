// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrate records calls and returns scripted results.
type fakeMigrate struct {
	upErr    error
	downErr  error
	stepsErr error
	stepsN   int

	version    uint
	dirty      bool
	versionErr error

	forceErr     error
	forcedTo     int
	closeSrcErr  error
	closeDBErr   error
	upCalls      int
	downCalls    int
}

func (f *fakeMigrate) Up() error   { f.upCalls++; return f.upErr }
func (f *fakeMigrate) Down() error { f.downCalls++; return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.stepsN = n
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(v int) error {
	f.forcedTo = v
	return f.forceErr
}
func (f *fakeMigrate) Close() (error, error) { return f.closeSrcErr, f.closeDBErr }

func TestMigratorUp(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		fake := &fakeMigrate{}
		m := &Migrator{m: fake}
		require.NoError(t, m.Up())
		assert.Equal(t, 1, fake.upCalls)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
		assert.NoError(t, m.Up())
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{upErr: errors.New("syntax error")}}
		err := m.Up()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error")
	})
}

func TestMigratorDown(t *testing.T) {
	t.Run("no change is not an error", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}
		assert.NoError(t, m.Down())
	})
}

func TestMigratorSteps(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}
	require.NoError(t, m.Steps(-2))
	assert.Equal(t, -2, fake.stepsN)
}

func TestMigratorVersion(t *testing.T) {
	t.Run("reports current version", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{version: 3, dirty: true}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(3), version)
		assert.True(t, dirty)
	})

	t.Run("nil version reads as zero and clean", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})
}

func TestMigratorForce(t *testing.T) {
	t.Run("rejects negative version", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{}}
		assert.Error(t, m.Force(-1))
	})

	t.Run("forwards the version", func(t *testing.T) {
		fake := &fakeMigrate{}
		m := &Migrator{m: fake}
		require.NoError(t, m.Force(2))
		assert.Equal(t, 2, fake.forcedTo)
	})
}

func TestMigratorClose(t *testing.T) {
	t.Run("clean close", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{}}
		assert.NoError(t, m.Close())
	})

	t.Run("source error surfaces", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{closeSrcErr: errors.New("source busted")}}
		err := m.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source busted")
	})

	t.Run("both errors surface", func(t *testing.T) {
		m := &Migrator{m: &fakeMigrate{
			closeSrcErr: errors.New("source busted"),
			closeDBErr:  errors.New("db busted"),
		}}
		err := m.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source busted")
		assert.Contains(t, err.Error(), "db busted")
	})
}

func TestNewMigratorRewritesScheme(t *testing.T) {
	// Connecting will fail (no database), but the error must come from the
	// pgx5 driver, proving the scheme rewrite happened.
	_, err := NewMigrator("postgres://localhost:1/matchday?sslmode=disable")
	require.Error(t, err)
}
