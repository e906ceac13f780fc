package acl

import (
	"context"
	"errors"
	"testing"

	"github.com/sonroyaalmerol/calendar-engine/internal/directory"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	grants []directory.Grant
	err    error
}

func (f *fakeDirectory) Close() {}

func (f *fakeDirectory) LookupUserByAttr(context.Context, string, string) (*directory.User, error) {
	return nil, directory.ErrUserNotFound
}

func (f *fakeDirectory) UserGrants(context.Context, *directory.User) ([]directory.Grant, error) {
	return f.grants, f.err
}

func TestFromCalendars(t *testing.T) {
	access := FromCalendars([]*storage.Calendar{
		{ID: "work"},
		{ID: "holidays", ReadOnly: true},
	})
	assert.False(t, access.IsReadOnly("work"))
	assert.True(t, access.IsReadOnly("holidays"))
	assert.True(t, access.IsReadOnly("unknown"))
	assert.True(t, access["holidays"].CanRead())
}

func TestLDAPACL(t *testing.T) {
	dir := &fakeDirectory{grants: []directory.Grant{
		{CalendarID: "team", Read: true},
		{CalendarID: "team", Write: true},
		{CalendarID: "holidays", Read: true},
	}}
	access, err := NewLDAPACL(dir).Access(context.Background(), &directory.User{DN: "uid=alice"})
	require.NoError(t, err)
	assert.Equal(t, Effective{Read: true, Write: true}, access["team"])
	assert.False(t, access.IsReadOnly("team"))
	assert.True(t, access.IsReadOnly("holidays"))

	dir.err = errors.New("ldap down")
	_, err = NewLDAPACL(dir).Access(context.Background(), &directory.User{DN: "uid=alice"})
	assert.Error(t, err)
}

func TestIntersect(t *testing.T) {
	stored := Access{"team": {Read: true, Write: true}, "archive": {Read: true}, "solo": {Read: true, Write: true}}
	ldap := Access{"team": {Read: true, Write: true}, "archive": {Read: true, Write: true}}

	got := stored.Intersect(ldap)
	assert.False(t, got.IsReadOnly("team"))
	assert.True(t, got.IsReadOnly("archive"))
	assert.True(t, got.IsReadOnly("solo"))
	_, ok := got["solo"]
	assert.False(t, ok)
}
