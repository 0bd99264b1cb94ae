// Package authz decides per-row access. Policies are registered per table and
// invoke boolean predicates over the caller's identity and the row's
// attributes.
//
// The identity attributes a predicate needs (role, organization, household)
// are resolved once at login and carried in the access token, so the common
// path never reads a policy-protected table. Predicates that do need stored
// data get it through Env, a privileged lookup that must not re-enter policy
// evaluation: a permission-check helper must never itself be subject to the
// permission check it helps evaluate. The evaluator enforces that at runtime
// and fails re-entrant evaluation instead of recursing.
package authz

import (
	"context"
	"errors"

	"whosehouse/api/internal/models"
)

// ErrRecursiveEvaluation is returned when a policy evaluation re-enters the
// evaluator, i.e. a predicate performed a lookup through the guarded path it
// is part of. Without this guard such a cycle loops until the stack blows.
var ErrRecursiveEvaluation = errors.New("authz: recursive policy evaluation")

type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Identity is the caller as seen by predicates. Built from token claims, not
// from a database read.
type Identity struct {
	UserID         string
	Role           models.Role
	OrganizationID string
	HouseholdID    string
}

// Row is the attribute view of a table row that policies may inspect.
// Unset fields are simply never matched.
type Row struct {
	OwnerID        string
	OrganizationID string
	SocialWorkerID string
	HouseholdID    string
}

// Env gives predicates privileged access to stored data, bypassing policy
// evaluation entirely.
type Env interface {
	RoleOf(ctx context.Context, userID string) (models.Role, error)
}

type Predicate func(ctx context.Context, env Env, id Identity, row Row) (bool, error)

type Policy struct {
	Table  string
	Action Action
	Allow  Predicate
}

type Evaluator struct {
	policies map[string][]Policy
	env      Env
}

func NewEvaluator(env Env, policies ...Policy) *Evaluator {
	byTable := make(map[string][]Policy, len(policies))
	for _, p := range policies {
		byTable[p.Table] = append(byTable[p.Table], p)
	}
	return &Evaluator{policies: byTable, env: env}
}

type evalMarker struct{}

// Allow reports whether id may perform action on the given row of table.
// Policies for a table are OR-ed: the first one that allows wins. Evaluation
// is bounded for every input; a re-entrant call fails with
// ErrRecursiveEvaluation.
func (e *Evaluator) Allow(ctx context.Context, id Identity, table string, action Action, row Row) (bool, error) {
	if ctx.Value(evalMarker{}) != nil {
		return false, ErrRecursiveEvaluation
	}
	ctx = context.WithValue(ctx, evalMarker{}, struct{}{})

	for _, p := range e.policies[table] {
		if p.Action != action {
			continue
		}
		ok, err := p.Allow(ctx, e.env, id, row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// IsAdmin allows administrators unconditionally.
func IsAdmin(_ context.Context, _ Env, id Identity, _ Row) (bool, error) {
	return id.Role == models.RoleAdmin, nil
}

// SelfRow allows access to rows the caller owns.
func SelfRow(_ context.Context, _ Env, id Identity, row Row) (bool, error) {
	return row.OwnerID != "" && row.OwnerID == id.UserID, nil
}

// SameOrganization allows access within the caller's organization.
func SameOrganization(_ context.Context, _ Env, id Identity, row Row) (bool, error) {
	return row.OrganizationID != "" && row.OrganizationID == id.OrganizationID, nil
}

// CaseParticipant allows the assigned social worker, or any carer whose
// household the case is placed with.
func CaseParticipant(_ context.Context, _ Env, id Identity, row Row) (bool, error) {
	if row.SocialWorkerID != "" && row.SocialWorkerID == id.UserID {
		return true, nil
	}
	return row.HouseholdID != "" && id.HouseholdID != "" && row.HouseholdID == id.HouseholdID, nil
}

// HouseholdMember allows members of the row's household.
func HouseholdMember(_ context.Context, _ Env, id Identity, row Row) (bool, error) {
	return row.HouseholdID != "" && id.HouseholdID != "" && row.HouseholdID == id.HouseholdID, nil
}

// SocialWorkerInOrg allows social workers to read rows in their organization,
// confirming the role through the privileged lookup when the identity itself
// does not carry it. The lookup runs outside policy evaluation, which is what
// keeps this predicate terminating.
func SocialWorkerInOrg(ctx context.Context, env Env, id Identity, row Row) (bool, error) {
	role := id.Role
	if role == "" && env != nil {
		var err error
		role, err = env.RoleOf(ctx, id.UserID)
		if err != nil {
			return false, err
		}
	}
	if role != models.RoleSocialWorker {
		return false, nil
	}
	return row.OrganizationID != "" && row.OrganizationID == id.OrganizationID, nil
}

// Default returns the evaluator covering the service's tables.
func Default(env Env) *Evaluator {
	return NewEvaluator(env,
		Policy{Table: "profiles", Action: ActionRead, Allow: IsAdmin},
		Policy{Table: "profiles", Action: ActionRead, Allow: SelfRow},
		Policy{Table: "profiles", Action: ActionRead, Allow: SameOrganization},
		Policy{Table: "profiles", Action: ActionWrite, Allow: IsAdmin},
		Policy{Table: "profiles", Action: ActionWrite, Allow: SelfRow},

		Policy{Table: "cases", Action: ActionRead, Allow: IsAdmin},
		Policy{Table: "cases", Action: ActionRead, Allow: CaseParticipant},
		Policy{Table: "cases", Action: ActionWrite, Allow: IsAdmin},
		Policy{Table: "cases", Action: ActionWrite, Allow: CaseParticipant},

		Policy{Table: "households", Action: ActionRead, Allow: IsAdmin},
		Policy{Table: "households", Action: ActionRead, Allow: HouseholdMember},
		Policy{Table: "households", Action: ActionRead, Allow: SocialWorkerInOrg},
		Policy{Table: "households", Action: ActionWrite, Allow: IsAdmin},
		Policy{Table: "households", Action: ActionWrite, Allow: HouseholdMember},

		Policy{Table: "messages", Action: ActionRead, Allow: CaseParticipant},
		Policy{Table: "messages", Action: ActionRead, Allow: SelfRow},
		Policy{Table: "messages", Action: ActionWrite, Allow: CaseParticipant},
	)
}
