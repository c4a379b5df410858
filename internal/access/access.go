// Package access decides who may observe, edit, and administer a resume.
package access

type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionShare  Action = "share"
	ActionDelete Action = "delete"
	ActionDeploy Action = "deploy"
)

// Grant is the part of a resume the policy looks at.
type Grant struct {
	Owner         string
	Collaborators []string
}

// CanAccess reports whether identity is the owner or a collaborator. It gates
// realtime join and update alike; there is no read-only grant.
func CanAccess(g Grant, identity string) bool {
	if identity == "" {
		return false
	}
	if identity == g.Owner {
		return true
	}
	for _, collaborator := range g.Collaborators {
		if collaborator == identity {
			return true
		}
	}
	return false
}

func IsOwner(g Grant, identity string) bool {
	return identity != "" && identity == g.Owner
}

func Can(g Grant, identity string, action Action) bool {
	switch action {
	case ActionView, ActionEdit:
		return CanAccess(g, identity)
	case ActionShare, ActionDelete, ActionDeploy:
		return IsOwner(g, identity)
	default:
		return false
	}
}
