package service

// Stage tracks how far a request progressed before succeeding or failing.
// Failures are logged with the stage they were reached from, which is what
// makes "verification failed" distinguishable from "verified but the
// directory was down" in the logs.
type Stage string

const (
	StageReceived       Stage = "received"
	StageInputValidated Stage = "input_validated"
	StageTokenVerified  Stage = "external_token_verified"
	StageUserResolved   Stage = "user_resolved"
	StageSessionCreated Stage = "session_created"

	// Refresh and revoke use the shorter machine.
	StageSessionRotated Stage = "session_rotated"
	StageSessionRevoked Stage = "session_revoked"
)
