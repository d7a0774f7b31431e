// Package nav holds the dashboard navigation and filters it per session.
package nav

import "orgsession/internal/platform/rbac"

// Item is one navigation entry. Items with children and no URL are groups.
type Item struct {
	Title    string           `json:"title"`
	URL      string           `json:"url,omitempty"`
	Icon     string           `json:"icon,omitempty"`
	Shortcut []string         `json:"shortcut,omitempty"`
	Access   rbac.Requirement `json:"-"`
	Items    []Item           `json:"items,omitempty"`
}

// DefaultItems is the dashboard navigation.
func DefaultItems() []Item {
	return []Item{
		{Title: "Dashboard", URL: "/dashboard/overview", Icon: "dashboard", Shortcut: []string{"d", "d"}, Access: rbac.None()},
		{Title: "Organizations", URL: "/dashboard/organizations", Icon: "billing", Shortcut: []string{"o", "o"}, Access: rbac.None()},
		{Title: "Audit log", URL: "/dashboard/audit", Icon: "audit", Access: rbac.RequiresPermission(rbac.PermAuditRead)},
		{Title: "Account", Icon: "account", Access: rbac.None(), Items: []Item{
			{Title: "Profile", URL: "/dashboard/profile", Icon: "profile", Shortcut: []string{"m", "m"}, Access: rbac.None()},
		}},
	}
}

// Filter returns the items s may see. A group whose children are all hidden is dropped.
func Filter(items []Item, s rbac.Subject) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !rbac.Evaluate(it.Access, s) {
			continue
		}
		if len(it.Items) > 0 {
			it.Items = Filter(it.Items, s)
			if len(it.Items) == 0 {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}
