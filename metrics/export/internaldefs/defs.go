package internaldefs

import (
	authcore "github.com/solvrey/authcore"
)

// CounterDef names one engine counter for exporters. Definitions are
// built once at init and treated as immutable.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs maps every engine counter to its exported name.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that returned a token pair."},
	{ID: authcore.MetricLoginMFARequired, Name: "authcore_login_mfa_required_total", Help: "Logins deferred to an MFA challenge."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected logins."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Explicit single-session logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Whole-account logouts."},
	{ID: authcore.MetricRenewSuccess, Name: "authcore_renew_success_total", Help: "Successful refresh redemptions."},
	{ID: authcore.MetricRenewFailure, Name: "authcore_renew_failure_total", Help: "Rejected renewals."},
	{ID: authcore.MetricRenewReplay, Name: "authcore_renew_replay_total", Help: "Refresh tokens presented after redemption."},
	{ID: authcore.MetricSessionCancelled, Name: "authcore_session_cancelled_total", Help: "Single-session cancellations."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Validations that found a live session."},
	{ID: authcore.MetricValidateRevoked, Name: "authcore_validate_revoked_total", Help: "Valid tokens whose session row was gone."},
	{ID: authcore.MetricEnrollInitiated, Name: "authcore_enroll_initiated_total", Help: "Enrollment starts."},
	{ID: authcore.MetricEnrollConfirmed, Name: "authcore_enroll_confirmed_total", Help: "Enrollments flipped to confirmed."},
	{ID: authcore.MetricEnrollFailed, Name: "authcore_enroll_failed_total", Help: "Wrong enrollment confirmation codes."},
	{ID: authcore.MetricEnrollLocked, Name: "authcore_enroll_locked_total", Help: "Enrollments destroyed by the try bound."},
	{ID: authcore.MetricMethodDisabled, Name: "authcore_method_disabled_total", Help: "Methods switched off."},
	{ID: authcore.MetricChallengeSent, Name: "authcore_challenge_sent_total", Help: "Login-time codes dispatched."},
	{ID: authcore.MetricChallengeVerified, Name: "authcore_challenge_verified_total", Help: "Login-time challenges solved."},
	{ID: authcore.MetricChallengeFailed, Name: "authcore_challenge_failed_total", Help: "Wrong login-time codes."},
	{ID: authcore.MetricChallengeLocked, Name: "authcore_challenge_locked_total", Help: "Login-time lockouts."},
	{ID: authcore.MetricBackupCodeConsumed, Name: "authcore_backup_code_consumed_total", Help: "Backup codes burned."},
}
