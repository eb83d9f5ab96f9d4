package authcore

// Method discriminates the supported multi-factor methods. The challenge
// engine is generic over Method: one enroll/confirm/disable/verify state
// machine with a per-method secret-generation and comparison strategy.
type Method uint8

const (
	// MethodMailOTP is a one-time code delivered by mail.
	MethodMailOTP Method = iota + 1
	// MethodTOTP is a time-based code derived from a shared seed.
	MethodTOTP
	// MethodSMSOTP is a one-time code delivered by SMS.
	MethodSMSOTP
	// MethodBackup is a single-use code from a pre-generated batch.
	MethodBackup
)

// Methods lists every supported method in stable order.
var Methods = []Method{MethodMailOTP, MethodTOTP, MethodSMSOTP, MethodBackup}

func (m Method) String() string {
	switch m {
	case MethodMailOTP:
		return "mail_otp"
	case MethodTOTP:
		return "totp"
	case MethodSMSOTP:
		return "sms_otp"
	case MethodBackup:
		return "backup"
	default:
		return "unknown"
	}
}

func (m Method) valid() bool {
	switch m {
	case MethodMailOTP, MethodTOTP, MethodSMSOTP, MethodBackup:
		return true
	}
	return false
}

// deliverable reports whether login-time codes for the method are
// dispatched through the [Notifier]. TOTP and backup codes are possessed
// by the account holder and never sent.
func (m Method) deliverable() bool {
	return m == MethodMailOTP || m == MethodSMSOTP
}
