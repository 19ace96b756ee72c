package auth

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuth
	KindNotFound
	KindExpired
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Error is a flow failure that is safe to show to the caller. Message is
// the user-facing text; Err keeps the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so a sentinel still matches
// after a cause has been attached with wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrEmptyFields      = &Error{Kind: KindValidation, Code: "empty_fields", Message: "Empty input fields!"}
	ErrInvalidName      = &Error{Kind: KindValidation, Code: "invalid_name", Message: "Invalid name entered"}
	ErrInvalidEmail     = &Error{Kind: KindValidation, Code: "invalid_email", Message: "Invalid email entered"}
	ErrPasswordTooShort = &Error{Kind: KindValidation, Code: "password_too_short", Message: "Password is too short!"}
	ErrPasswordTooLong  = &Error{Kind: KindValidation, Code: "password_too_long", Message: "Password is too long!"}

	ErrUserExists = &Error{Kind: KindConflict, Code: "user_exists", Message: "User with the provided email already exists"}

	ErrAlreadyVerifiedOrMissing   = &Error{Kind: KindNotFound, Code: "already_verified_or_missing", Message: "Account doesn't exist or has been verified already. Please sign up or log in."}
	ErrLinkExpired                = &Error{Kind: KindExpired, Code: "link_expired", Message: "Link has expired. Please sign up again."}
	ErrInvalidVerificationDetails = &Error{Kind: KindAuth, Code: "invalid_verification_details", Message: "Invalid verification details passed. Check your inbox."}

	ErrEmptyCredentials   = &Error{Kind: KindValidation, Code: "empty_credentials", Message: "Empty credentials supplied"}
	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "Invalid credentials entered!"}
	ErrEmailNotVerified   = &Error{Kind: KindAuth, Code: "email_not_verified", Message: "Email hasn't been verified yet. Check your inbox."}
	ErrInvalidPassword    = &Error{Kind: KindAuth, Code: "invalid_password", Message: "Invalid password entered!"}

	ErrVerificationEmailFailed = &Error{Kind: KindDependency, Code: "verification_email_failed", Message: "Verification email failed to send"}
	ErrInternal                = &Error{Kind: KindDependency, Code: "internal", Message: "Internal error"}
)
