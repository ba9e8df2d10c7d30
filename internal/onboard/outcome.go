package onboard

// Outcome is the result of one onboarding run. Immutable; consumed once
// by the status reporter and recorded in the run history.
type Outcome struct {
	RunID         string
	AccountNumber string // normalized

	// Success means the registration workflow completed. Connected
	// additionally means the console showed a live connection for the
	// account afterwards, since a registered-but-unverified account is
	// Success:true, Connected:false.
	Success   bool
	Connected bool

	MatchedTemplate string
	FailureReason   string
	// Note carries non-fatal observations, e.g. the account not yet being
	// visible after a popup authorization that may not have completed.
	Note string
}
