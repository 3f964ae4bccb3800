package identity

import "strings"

// RoleConfig is the static allowlist configuration, read once at startup.
type RoleConfig struct {
	CEOEmails               []string
	PurchaserEmails         []string
	ExternalRequesterEmails []string
	OrganizationDomain      string
}

// Resolver derives roles from email addresses. It is immutable and safe for concurrent use.
type Resolver struct {
	ceo       map[string]struct{}
	purchaser map[string]struct{}
	external  map[string]struct{}
	domain    string
}

func NewResolver(cfg RoleConfig) *Resolver {
	return &Resolver{
		ceo:       toSet(cfg.CEOEmails),
		purchaser: toSet(cfg.PurchaserEmails),
		external:  toSet(cfg.ExternalRequesterEmails),
		domain:    strings.TrimPrefix(NormalizeEmail(cfg.OrganizationDomain), "@"),
	}
}

// ResolveRole checks the ceo list, then purchasers, then external requesters or the organization domain.
// The order matters: an address on several lists gets the highest role.
func (r *Resolver) ResolveRole(email string) (Role, bool) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", false
	}
	if _, ok := r.ceo[email]; ok {
		return RoleCEO, true
	}
	if _, ok := r.purchaser[email]; ok {
		return RolePurchaser, true
	}
	if _, ok := r.external[email]; ok {
		return RoleRequester, true
	}
	if r.domain != "" && domainOf(email) == r.domain {
		return RoleRequester, true
	}
	return "", false
}

func (r *Resolver) IsAuthorized(email string) bool {
	_, ok := r.ResolveRole(email)
	return ok
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func domainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

func toSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = NormalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}
