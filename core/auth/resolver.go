package auth

import (
	"strings"

	"github.com/trezcool/hoaportal/core"
)

const DefaultAdminKeyword = "admin"

// RoleResolver derives the admin flag from an identity's email.
type RoleResolver struct {
	allowList      map[string]struct{}
	keyword        string
	legacyGrantAll bool
}

type ResolverOption func(*RoleResolver)

// WithKeyword overrides the substring granting admin rights. An empty keyword disables the rule.
func WithKeyword(keyword string) ResolverOption {
	return func(r *RoleResolver) { r.keyword = strings.ToLower(keyword) }
}

// WithLegacyGrantAll restores the old fallback making every signed-in identity an admin.
// It exists to document that defect, not as a policy.
func WithLegacyGrantAll() ResolverOption {
	return func(r *RoleResolver) { r.legacyGrantAll = true }
}

func NewRoleResolver(allowList []string, opts ...ResolverOption) *RoleResolver {
	r := &RoleResolver{
		allowList: make(map[string]struct{}, len(allowList)),
		keyword:   DefaultAdminKeyword,
	}
	for _, email := range allowList {
		if email = core.CleanString(email, true /* lower */); email != "" {
			r.allowList[email] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRoleResolverFromConfig builds the resolver from the auth configuration.
func NewRoleResolverFromConfig(conf *core.Config) *RoleResolver {
	opts := []ResolverOption{WithKeyword(conf.Auth.AdminKeyword)}
	if conf.Auth.LegacyGrantAll {
		opts = append(opts, WithLegacyGrantAll())
	}
	return NewRoleResolver(conf.Auth.AdminEmails, opts...)
}

// IsAdmin is true iff an identity is present and its email is allow-listed
// or contains the admin keyword (case-insensitive).
func (r *RoleResolver) IsAdmin(id *Identity) bool {
	if id == nil {
		return false
	}
	email := core.CleanString(id.Email, true /* lower */)
	if email != "" {
		if _, ok := r.allowList[email]; ok {
			return true
		}
		if r.keyword != "" && strings.Contains(email, r.keyword) {
			return true
		}
	}
	return r.legacyGrantAll
}

// LegacyGrantAll reports whether the defective fallback is enabled.
func (r *RoleResolver) LegacyGrantAll() bool { return r.legacyGrantAll }
