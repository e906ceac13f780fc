// Package acl decides which calendars accept event changes.
package acl

import (
	"context"

	"github.com/sonroyaalmerol/calendar-engine/internal/directory"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

// Access maps calendar IDs to privileges. Calendars missing from the map are
// read-only.
type Access map[string]Effective

func (a Access) IsReadOnly(calendarID string) bool {
	return !a[calendarID].CanWrite()
}

// Intersect keeps, per calendar, only what both a and b allow.
func (a Access) Intersect(b Access) Access {
	out := make(Access, len(a))
	for id, e := range a {
		o, ok := b[id]
		if !ok {
			continue
		}
		out[id] = Effective{Read: e.CanRead() && o.CanRead(), Write: e.Write && o.Write}
	}
	return out
}

// FromCalendars grants read to every calendar and write to those not flagged
// read-only.
func FromCalendars(cals []*storage.Calendar) Access {
	out := make(Access, len(cals))
	for _, c := range cals {
		out[c.ID] = Effective{Read: true, Write: !c.ReadOnly}
	}
	return out
}

type Provider interface {
	Access(ctx context.Context, user *directory.User) (Access, error)
}

// LDAPACL reads grants from the groups a user belongs to.
type LDAPACL struct {
	Dir directory.Directory
}

func NewLDAPACL(dir directory.Directory) *LDAPACL {
	return &LDAPACL{Dir: dir}
}

func (p *LDAPACL) Access(ctx context.Context, user *directory.User) (Access, error) {
	grants, err := p.Dir.UserGrants(ctx, user)
	if err != nil {
		return nil, err
	}
	out := Access{}
	for _, g := range grants {
		e := out[g.CalendarID]
		e.Read = e.Read || g.Read
		e.Write = e.Write || g.Write
		out[g.CalendarID] = e
	}
	return out, nil
}
