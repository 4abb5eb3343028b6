package apperr

var (
	// connections
	ErrInvalidTarget       = Validation("invalid user id")
	ErrSelfConnection      = Validation("cannot connect to yourself")
	ErrConnectionExists    = AlreadyExists("connection already exists")
	ErrRequestNotFound     = NotFound("no pending request found")
	ErrUserNotFound        = NotFound("user not found")
	ErrNotConnected        = Unauthorized("you can only message connected users")
	ErrNotParticipant      = Unauthorized("access denied")
	ErrInvalidConversation = Validation("invalid conversation id")

	// messages
	ErrEmptyMessage   = Validation("message cannot be empty")
	ErrMessageTooLong = Validation("message is too long")
	ErrSelfMessage    = Validation("cannot message yourself")

	// accounts
	ErrMissingFields      = Validation("all fields are required")
	ErrEmailTaken         = AlreadyExists("email already registered")
	ErrInvalidCredentials = Unauthenticated("invalid credentials")
	ErrRateLimited        = New(KindRateLimited, "rate limit exceeded")
)
