package thirdparty

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"docstore/internal/files"
)

// Selector recognizes the composite ids of one provider and hands out
// DAOs bound to the link an id points into.
type Selector struct {
	provider Provider
	re       *regexp.Regexp
	accounts *Accounts
	sessions *Registry
	logger   files.Logger
}

// NewSelector builds the selector for p.
func NewSelector(p Provider, accounts *Accounts, sessions *Registry, logger files.Logger) *Selector {
	return &Selector{
		provider: p,
		re:       regexp.MustCompile(`(?s)^` + regexp.QuoteMeta(p.Prefix) + `-(?P<id>\d+)(-(?P<path>.*))?$`),
		accounts: accounts,
		sessions: sessions,
		logger:   logger.With("provider", p.Prefix),
	}
}

// EnabledSelectors returns a selector for every enabled provider in
// priority order.
func EnabledSelectors(accounts *Accounts, sessions *Registry, logger files.Logger) []*Selector {
	var result []*Selector
	for _, p := range Providers {
		if accounts.IsEnabled(p) {
			result = append(result, NewSelector(p, accounts, sessions, logger))
		}
	}
	return result
}

func (s *Selector) Provider() Provider {
	return s.provider
}

// IsMatch reports whether id belongs to this provider.
func (s *Selector) IsMatch(id string) bool {
	return s.re.MatchString(id)
}

// ConvertID returns the provider-native path of id, "" for a link root.
func (s *Selector) ConvertID(id string) (string, error) {
	m := s.re.FindStringSubmatch(id)
	if m == nil {
		return "", errors.NotValidf("%s id %q", s.provider.Title, id)
	}
	return strings.ReplaceAll(m[s.re.SubexpIndex("path")], "|", "/"), nil
}

// GetIDCode returns the link id part of id, or "" when id is not one of
// this provider's ids.
func (s *Selector) GetIDCode(id string) string {
	m := s.re.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return m[s.re.SubexpIndex("id")]
}

// MakeID builds the composite id of path p within link linkID.
func (s *Selector) MakeID(linkID int, p string) string {
	root := s.provider.Prefix + "-" + strconv.Itoa(linkID)
	p = strings.Trim(p, "/")
	if p == "" {
		return root
	}
	return root + "-" + strings.ReplaceAll(p, "/", "|")
}

// GetProviderInfo loads a link the actor may use.
func (s *Selector) GetProviderInfo(ctx context.Context, actor files.Actor, linkID int) (*ProviderInfo, error) {
	return s.accounts.GetProviderInfo(ctx, actor, linkID)
}

// GetDaoSet returns a DAO bound to the link id points into. The caller
// must Close it.
func (s *Selector) GetDaoSet(ctx context.Context, actor files.Actor, id string) (*ProviderDao, error) {
	code := s.GetIDCode(id)
	if code == "" {
		return nil, errors.NotValidf("%s id %q", s.provider.Title, id)
	}
	linkID, err := strconv.Atoi(code)
	if err != nil {
		return nil, errors.NotValidf("%s link id %q", s.provider.Title, code)
	}
	info, err := s.GetProviderInfo(ctx, actor, linkID)
	if err != nil {
		return nil, err
	}
	if info.Provider != s.provider {
		return nil, accessDenied(linkID)
	}
	dao := NewProviderDao(actor)
	dao.Init(info, s)
	return dao, nil
}
