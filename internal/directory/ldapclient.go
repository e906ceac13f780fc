package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sonroyaalmerol/calendar-engine/internal/cache"
	"github.com/sonroyaalmerol/calendar-engine/internal/config"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
)

var ErrUserNotFound = errors.New("directory: user not found")

type Directory interface {
	Close()
	LookupUserByAttr(ctx context.Context, attr, value string) (*User, error)
	UserGrants(ctx context.Context, user *User) ([]Grant, error)
}

type LDAPClient struct {
	cfg    config.LDAPConfig
	logger zerolog.Logger

	mu     sync.Mutex
	conn   *ldap.Conn
	grants *cache.Cache[string, []Grant]
}

func NewLDAPClient(cfg config.LDAPConfig, logger zerolog.Logger) (*LDAPClient, error) {
	logger = logging.Component(logger, "ldap")
	l, err := dialLDAPAuto(cfg)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.URL).Msg("failed to dial LDAP")
		return nil, err
	}
	if cfg.BindDN != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			logger.Error().Err(err).Str("bind_dn", cfg.BindDN).Msg("initial bind failed")
			l.Close()
			return nil, err
		}
	}
	return &LDAPClient{
		cfg:    cfg,
		logger: logger,
		conn:   l,
		grants: cache.New[string, []Grant](cfg.CacheTTL),
	}, nil
}

func (l *LDAPClient) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

func (l *LDAPClient) search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil, errors.New("LDAP connection closed")
	}
	return l.conn.Search(req)
}

func (l *LDAPClient) LookupUserByAttr(ctx context.Context, attr, value string) (*User, error) {
	attr = safeAttr(attr)
	req := ldap.NewSearchRequest(
		l.cfg.UserBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(l.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(%s=%s)", attr, ldap.EscapeFilter(value)),
		userAttrList(l.cfg),
		nil,
	)
	res, err := l.search(req)
	if err != nil {
		l.logger.Error().Err(err).
			Str("attr", attr).
			Str("value", value).
			Str("user_base_dn", l.cfg.UserBaseDN).
			Msg("LDAP search failed in LookupUserByAttr")
		return nil, ErrUserNotFound
	}
	if len(res.Entries) == 0 {
		l.logger.Debug().Str("attr", attr).Str("value", value).Msg("user not found")
		return nil, ErrUserNotFound
	}
	e := res.Entries[0]
	return &User{
		UID:         firstNonEmpty(e.GetAttributeValue(l.cfg.TokenUserAttr), e.GetAttributeValue("uid")),
		DN:          e.DN,
		DisplayName: firstNonEmpty(e.GetAttributeValue("displayName"), e.GetAttributeValue("cn")),
		Mail:        e.GetAttributeValue("mail"),
	}, nil
}

// UserGrants returns the calendar grants of every group user belongs to.
// Results are cached per DN for CacheTTL.
func (l *LDAPClient) UserGrants(ctx context.Context, user *User) ([]Grant, error) {
	if v, ok := l.grants.Get(user.DN); ok {
		return v, nil
	}
	memFilter := fmt.Sprintf("(%s=%s)", safeAttr(l.cfg.MemberAttr), ldap.EscapeFilter(user.DN))
	req := ldap.NewSearchRequest(
		l.cfg.GroupBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(l.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(&(objectClass=groupOfNames)%s)", memFilter),
		groupAttrList(l.cfg),
		nil,
	)
	res, err := l.search(req)
	if err != nil {
		l.logger.Error().Err(err).
			Str("group_base_dn", l.cfg.GroupBaseDN).
			Str("user_dn", user.DN).
			Msg("LDAP search failed in UserGrants")
		return nil, err
	}

	var grants []Grant
	for _, e := range res.Entries {
		if l.cfg.BindingsAttr != "" {
			grants = append(grants, grantsFromBindings(e.GetAttributeValues(l.cfg.BindingsAttr))...)
			continue
		}
		privs := e.GetAttributeValues(l.cfg.PrivilegesAttr)
		for _, cal := range e.GetAttributeValues(l.cfg.CalendarIDsAttr) {
			grants = append(grants, grantFromPrivileges(cal, privs))
		}
	}
	l.grants.Put(user.DN, grants)
	return grants, nil
}

// applyPrivilege sets the flag named by p. Unknown names are ignored.
func applyPrivilege(g *Grant, p string) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "read":
		g.Read = true
	case "write", "edit", "writecontent", "write-content", "writeprops", "write-properties":
		g.Write = true
	case "all":
		g.Read, g.Write = true, true
	}
}

func grantFromPrivileges(calID string, privs []string) Grant {
	g := Grant{CalendarID: calID}
	for _, p := range privs {
		applyPrivilege(&g, p)
	}
	return g
}

// grantsFromBindings parses lines like "calendar-id=team;priv=read,write".
func grantsFromBindings(lines []string) []Grant {
	var out []Grant
	for _, line := range lines {
		var g Grant
		for _, part := range strings.Split(line, ";") {
			kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(kv[0])) {
			case "calendar-id":
				g.CalendarID = strings.TrimSpace(kv[1])
			case "priv", "privileges":
				for _, p := range strings.Split(kv[1], ",") {
					applyPrivilege(&g, p)
				}
			}
		}
		if g.CalendarID != "" {
			out = append(out, g)
		}
	}
	return out
}

func userAttrList(cfg config.LDAPConfig) []string {
	attrs := []string{"dn", "displayName", "mail", "uid", "cn"}
	if cfg.TokenUserAttr != "" && !contains(attrs, cfg.TokenUserAttr) {
		attrs = append(attrs, cfg.TokenUserAttr)
	}
	return attrs
}

func groupAttrList(cfg config.LDAPConfig) []string {
	attrs := []string{"dn", "cn", cfg.MemberAttr}
	if cfg.BindingsAttr != "" {
		return append(attrs, cfg.BindingsAttr)
	}
	return append(attrs, cfg.CalendarIDsAttr, cfg.PrivilegesAttr)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func safeAttr(a string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' {
			return r
		}
		return -1
	}, a)
}

func tlsConfigFor(cfg config.LDAPConfig, hostPort string) *tls.Config {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
		tlsConfig.ServerName = host
	} else {
		tlsConfig.ServerName = hostPort
	}
	return tlsConfig
}

func dialLDAPAuto(cfg config.LDAPConfig) (*ldap.Conn, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("LDAP URL is empty")
	}
	lower := strings.ToLower(u)

	switch {
	case strings.HasPrefix(lower, "ldaps://"):
		return ldap.DialURL(u, ldap.DialWithTLSConfig(tlsConfigFor(cfg, u[len("ldaps://"):])))
	case strings.HasPrefix(lower, "ldap://"):
	default:
		return nil, errors.New("URL must start with ldap:// or ldaps://")
	}

	conn, err := ldap.DialURL(u)
	if err != nil {
		return nil, err
	}
	if cfg.RequireTLS {
		if err := conn.StartTLS(tlsConfigFor(cfg, u[len("ldap://"):])); err != nil {
			conn.Close()
			return nil, fmt.Errorf("StartTLS failed: %w", err)
		}
	}
	return conn, nil
}
