package pagetemp

import "github.com/hyp3rd/pagetemp/pkg/eviction"

// Middleware describes a policy middleware.
type Middleware func(eviction.Policy) eviction.Policy

// ApplyMiddleware applies middlewares to a policy.
func ApplyMiddleware(policy eviction.Policy, mw ...Middleware) eviction.Policy {
	// Apply each middleware in the chain
	for _, m := range mw {
		policy = m(policy)
	}

	return policy
}
