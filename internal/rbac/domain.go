package rbac

// PermAll is the wildcard permission satisfying every check.
const PermAll = "all"

// ownSuffix marks the own-resource variant of a permission, e.g.
// "catalog.product.edit.own".
const ownSuffix = ".own"

// Role groups a rank with a set of permission tokens. Rank orders roles by
// administrative authority; a strictly higher rank outranks a lower one.
type Role struct {
	Rank        int      `json:"rank"`
	Permissions []string `json:"permissions"`
}

// OwnVariant returns the own-resource form of a permission token.
func OwnVariant(perm string) string {
	return perm + ownSuffix
}
