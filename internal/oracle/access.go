package oracle

import (
	"context"
	"fmt"
)

// Role is a privilege a caller may need for an operation.
type Role int

const (
	RoleAdmin Role = iota
	RoleRelayer
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleRelayer:
		return "relayer"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// AccessControl owns the admin identity and the relayer set.
type AccessControl struct {
	state AccessState
}

// NewAccessControl wraps persisted access state.
func NewAccessControl(state AccessState) *AccessControl {
	return &AccessControl{state: state}
}

// init seeds a fresh state with admin as both admin and relayer. Existing
// state is left untouched and its admin returned.
func (a *AccessControl) init(ctx context.Context, admin Identity) (Identity, bool, error) {
	cur, ok, err := a.state.LoadAdmin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load admin: %w", err)
	}
	if ok {
		return cur, false, nil
	}
	if err := a.state.StoreAdmin(ctx, admin); err != nil {
		return "", false, fmt.Errorf("store admin: %w", err)
	}
	if err := a.state.PutRelayer(ctx, admin); err != nil {
		return "", false, fmt.Errorf("add admin relayer: %w", err)
	}
	return admin, true, nil
}

// Admin returns the current admin identity.
func (a *AccessControl) Admin(ctx context.Context) (Identity, error) {
	id, ok, err := a.state.LoadAdmin(ctx)
	if err != nil {
		return "", fmt.Errorf("load admin: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("load admin: no admin set")
	}
	return id, nil
}

// IsRelayer reports relayer membership. It requires no authorization.
func (a *AccessControl) IsRelayer(ctx context.Context, id Identity) (bool, error) {
	ok, err := a.state.HasRelayer(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check relayer %q: %w", id, err)
	}
	return ok, nil
}

// authorize is the single policy check used before every privileged call.
func (a *AccessControl) authorize(ctx context.Context, caller Identity, role Role) error {
	switch role {
	case RoleAdmin:
		admin, err := a.Admin(ctx)
		if err != nil {
			return err
		}
		if caller != admin {
			return ErrUnauthorized
		}
		return nil
	case RoleRelayer:
		ok, err := a.IsRelayer(ctx, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}
		return nil
	default:
		return ErrUnauthorized
	}
}

// GrantRelayers adds every id to the relayer set. Already present ids are no-ops.
func (a *AccessControl) GrantRelayers(ctx context.Context, caller Identity, ids []Identity) error {
	if err := a.authorize(ctx, caller, RoleAdmin); err != nil {
		return err
	}
	for _, id := range ids {
		if err := a.state.PutRelayer(ctx, id); err != nil {
			return fmt.Errorf("grant relayer %q: %w", id, err)
		}
	}
	return nil
}

// RevokeRelayers removes every id from the relayer set. Absent ids are no-ops.
func (a *AccessControl) RevokeRelayers(ctx context.Context, caller Identity, ids []Identity) error {
	if err := a.authorize(ctx, caller, RoleAdmin); err != nil {
		return err
	}
	for _, id := range ids {
		if err := a.state.DeleteRelayer(ctx, id); err != nil {
			return fmt.Errorf("revoke relayer %q: %w", id, err)
		}
	}
	return nil
}

// TransferAdmin replaces the admin. Relayer membership is not touched.
func (a *AccessControl) TransferAdmin(ctx context.Context, caller, newAdmin Identity) error {
	if err := a.authorize(ctx, caller, RoleAdmin); err != nil {
		return err
	}
	if err := a.state.StoreAdmin(ctx, newAdmin); err != nil {
		return fmt.Errorf("store admin: %w", err)
	}
	return nil
}
