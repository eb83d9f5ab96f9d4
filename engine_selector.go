package authcore

import "context"

// Selection is the outcome of [Engine.SelectChallenge]: whether the
// account must pass MFA, and if so which methods it may use, in stable
// [Methods] order.
type Selection struct {
	Required bool
	Methods  []Method
}

// SelectChallenge inspects the account's enrollment state and reports
// which challenge, if any, stands between a correct password and a
// session. An account with no enabled method requires nothing.
func (e *Engine) SelectChallenge(ctx context.Context, accountID string) (*Selection, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	methods := account.EnabledMethods()
	return &Selection{
		Required: len(methods) > 0,
		Methods:  methods,
	}, nil
}
