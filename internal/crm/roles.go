package crm

// Application roles, from most to least privileged.
const (
	RoleAdmin  = "Admin"
	RoleEditor = "Editor"
	RoleViewer = "Viewer"
)

// roleTier pairs a predicate over contact flags with the role set it grants.
// Tiers are evaluated in order and the first match wins; grants are never
// merged across tiers.
type roleTier struct {
	match func(Contact) bool
	roles []string
}

// MapRoles derives application roles from a contact's role flags. The field
// list is ordered by priority: the first field is the administrator flag, the
// last is the read-access flag, and anything in between is a contributor flag.
// A contact with no matching flags still gets the viewer role.
func MapRoles(contact Contact, fields []string) []string {
	for _, tier := range buildTiers(fields) {
		if tier.match(contact) {
			return append([]string(nil), tier.roles...)
		}
	}
	return []string{RoleViewer}
}

func buildTiers(fields []string) []roleTier {
	if len(fields) == 0 {
		return nil
	}

	tiers := []roleTier{{
		match: flagIsSet(fields[0]),
		roles: []string{RoleAdmin, RoleEditor, RoleViewer},
	}}

	if len(fields) > 2 {
		contributors := fields[1 : len(fields)-1]
		tiers = append(tiers, roleTier{
			match: anyFlagIsSet(contributors),
			roles: []string{RoleEditor, RoleViewer},
		})
	}

	if len(fields) > 1 {
		tiers = append(tiers, roleTier{
			match: flagIsSet(fields[len(fields)-1]),
			roles: []string{RoleViewer},
		})
	}

	return tiers
}

func flagIsSet(field string) func(Contact) bool {
	return func(c Contact) bool {
		return c.Flags[field]
	}
}

func anyFlagIsSet(fields []string) func(Contact) bool {
	return func(c Contact) bool {
		for _, f := range fields {
			if c.Flags[f] {
				return true
			}
		}
		return false
	}
}
