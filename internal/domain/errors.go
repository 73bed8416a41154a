package domain

import "errors"

var (
	// ErrNoQuestions is returned when the question source has nothing matching the requested criteria.
	ErrNoQuestions = errors.New("no questions matched the requested options")
	// ErrProviderUnavailable indicates the question source could not be reached or answered badly.
	ErrProviderUnavailable = errors.New("question provider unavailable")
	// ErrInvalidOptions indicates the question source rejected a parameter.
	ErrInvalidOptions = errors.New("question provider rejected quiz options")
	// ErrRateLimited indicates the question source asked us to back off.
	ErrRateLimited = errors.New("question provider rate limited the request")
	// ErrQuizInProgress is returned when a party already has an active quiz run.
	ErrQuizInProgress = errors.New("a quiz is already running for this party")
	// ErrInvalidPartyID is returned for party ids that are empty or contain unsupported characters.
	ErrInvalidPartyID = errors.New("invalid party id")
	// ErrPartyEmpty is returned when a party loses every member while a quiz is waiting on them.
	ErrPartyEmpty = errors.New("party has no members")
	// ErrNotMember is returned when a user acts on a party they have not joined.
	ErrNotMember = errors.New("user is not a member of this party")
	// ErrNotLeader is returned when a leader-only action is requested by another member.
	ErrNotLeader = errors.New("only the party leader can do that")
	// ErrInvalidPayload indicates an inbound message could not be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
)
