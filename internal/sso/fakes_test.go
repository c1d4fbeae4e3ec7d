package sso

import (
	"context"
	"errors"
)

var errStoreDown = errors.New("connection refused")

// failingStore errors on every operation, simulating an unreachable database.
type failingStore struct{}

func (failingStore) Users(context.Context) UserStore          { return failingStore{} }
func (failingStore) Grants(context.Context) GrantStore        { return failingStore{} }
func (failingStore) AccessLog(context.Context) AccessLogStore { return failingStore{} }

func (failingStore) FindByEmail(context.Context, string) (*User, error) {
	return nil, errStoreDown
}
func (failingStore) TouchLastAccess(context.Context, string) error { return errStoreDown }
func (failingStore) ApplicationGrant(context.Context, string, string) (*ApplicationGrant, error) {
	return nil, errStoreDown
}
func (failingStore) ModuleGrants(context.Context, string, string, string) (*ModuleGrantSet, error) {
	return nil, errStoreDown
}
func (failingStore) ModulesForUser(context.Context, string, string) ([]ModuleAccess, error) {
	return nil, errStoreDown
}
func (failingStore) Append(context.Context, *AccessEntry) error { return errStoreDown }

// grantFailStore serves users from the embedded store but fails grant lookups.
type grantFailStore struct{ *MemStore }

func (s grantFailStore) Grants(context.Context) GrantStore { return failingStore{} }

// countingFailAppender counts append attempts and fails each one.
type countingFailAppender struct{ attempts int }

func (c *countingFailAppender) Append(context.Context, *AccessEntry) error {
	c.attempts++
	return errStoreDown
}
