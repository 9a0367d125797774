package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies game errors so callers can branch on the failure
// class while the client boundary only ever sees the message text.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindTurnViolation
	KindAnswerMismatch
	KindContentUnavailable
	KindPersistence
)

type Error struct {
	Kind    ErrorKind
	Message string
	// CorrectAnswer is set on AnswerMismatch errors so the client can
	// reveal it to the player.
	CorrectAnswer string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrRoomFull       = &Error{Kind: KindValidation, Message: "room is full"}
	ErrRoomNotFound   = &Error{Kind: KindValidation, Message: "room or game not found"}
	ErrPlayerNotFound = &Error{Kind: KindValidation, Message: "player not found"}
	ErrCardNotFound   = &Error{Kind: KindValidation, Message: "card not found"}
	ErrMatchNotActive = &Error{Kind: KindValidation, Message: "game is not active"}
	ErrNotYourTurn    = &Error{Kind: KindTurnViolation, Message: "not your turn"}
)

// WrongAnswer builds the AnswerMismatch error for a failed trivia check.
func WrongAnswer(correct string) *Error {
	return &Error{
		Kind:          KindAnswerMismatch,
		Message:       fmt.Sprintf("wrong answer! the correct answer is: %s", correct),
		CorrectAnswer: correct,
	}
}

// ContentUnavailable reports an empty question bank for a card type.
func ContentUnavailable(t CardType) *Error {
	return &Error{
		Kind:    KindContentUnavailable,
		Message: fmt.Sprintf("no questions available for card type: %s", t),
	}
}

// IsKind reports whether err is a game error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}
