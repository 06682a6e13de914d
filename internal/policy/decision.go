// Package policy holds the per-action authorization rules. A denial is a value, never an error.
package policy

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

func check(ok bool, reason string) Decision {
	if ok {
		return Allow()
	}
	return Deny(reason)
}
