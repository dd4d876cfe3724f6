package access

import (
	"fmt"

	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"shepherd/internal/domain/account"
)

// Resource kinds.
const (
	ResourceAvailability = "availability"
	ResourceAppointment  = "appointment"
	ResourceAccount      = "account"
	ResourceCounselor    = "counselor"
)

// Actions.
const (
	ActionList   = "list"
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const gridModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// grid is the coarse (role, resource, action) table. Ownership and field
// rules live in the role policies.
var grid = [][3]string{
	{"MEMBER", ResourceAvailability, ActionList},
	{"MEMBER", ResourceAvailability, ActionGet},
	{"MEMBER", ResourceAppointment, ActionList},
	{"MEMBER", ResourceAppointment, ActionGet},
	{"MEMBER", ResourceAppointment, ActionCreate},
	{"MEMBER", ResourceAppointment, ActionUpdate},
	{"MEMBER", ResourceAppointment, ActionDelete},
	{"MEMBER", ResourceCounselor, ActionList},

	{"COUNSELOR", ResourceAvailability, ActionList},
	{"COUNSELOR", ResourceAvailability, ActionGet},
	{"COUNSELOR", ResourceAvailability, ActionCreate},
	{"COUNSELOR", ResourceAvailability, ActionUpdate},
	{"COUNSELOR", ResourceAvailability, ActionDelete},
	{"COUNSELOR", ResourceAppointment, ActionList},
	{"COUNSELOR", ResourceAppointment, ActionGet},
	{"COUNSELOR", ResourceAppointment, ActionUpdate},
	{"COUNSELOR", ResourceAppointment, ActionDelete},
	{"COUNSELOR", ResourceCounselor, ActionList},

	{"ADMIN", ResourceAvailability, ActionList},
	{"ADMIN", ResourceAvailability, ActionGet},
	{"ADMIN", ResourceAvailability, ActionUpdate},
	{"ADMIN", ResourceAvailability, ActionDelete},
	{"ADMIN", ResourceAppointment, ActionList},
	{"ADMIN", ResourceAppointment, ActionGet},
	{"ADMIN", ResourceAppointment, ActionUpdate},
	{"ADMIN", ResourceAppointment, ActionDelete},
	{"ADMIN", ResourceCounselor, ActionList},
	{"ADMIN", ResourceAccount, ActionList},
	{"ADMIN", ResourceAccount, ActionUpdate},
}

// Grid answers whether a role may perform an action on a resource kind.
type Grid struct {
	enforcer *casbin.Enforcer
}

// NewGrid builds the in-memory enforcer and loads the role table.
// POST: the enforcer holds every row of grid and nothing else
func NewGrid() (*Grid, error) {
	m, err := model.NewModelFromString(gridModel)
	if err != nil {
		return nil, fmt.Errorf("access model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("access enforcer: %w", err)
	}
	for _, row := range grid {
		if _, err := e.AddPolicy(row[0], row[1], row[2]); err != nil {
			return nil, fmt.Errorf("access policy %v: %w", row, err)
		}
	}
	return &Grid{enforcer: e}, nil
}

// Allowed reports whether role may perform action on resource.
func (g *Grid) Allowed(role account.Role, resource, action string) (bool, error) {
	return g.enforcer.Enforce(string(role), resource, action)
}
