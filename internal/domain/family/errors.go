package family

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies failures so transport layers can map them without
// string matching.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "validation"
	CodeNotFound     ErrorCode = "not_found"
	CodeConflict     ErrorCode = "conflict"
	CodeExternalTool ErrorCode = "external_tool"
	CodePersistence  ErrorCode = "persistence"
	CodeIDExhausted  ErrorCode = "id_exhausted"
	CodeInternal     ErrorCode = "internal"
)

var (
	// ErrNoFamily is returned when the requested root has no relations at all.
	ErrNoFamily = NewError(CodeNotFound, "tree", "member has no family", nil)
	// ErrSelfRelation rejects marrying or adopting oneself.
	ErrSelfRelation = NewError(CodeValidation, "relation", "a member cannot be related to themselves", nil)
	// ErrAlreadyMarried rejects a marriage while either side has an active partner.
	ErrAlreadyMarried = NewError(CodeValidation, "marry", "member already has a partner", nil)
	// ErrNotMarried is returned by divorce when there is no active partner.
	ErrNotMarried = NewError(CodeNotFound, "divorce", "member has no partner", nil)
	// ErrHasParent rejects a second parent link for the same child.
	ErrHasParent = NewError(CodeValidation, "adopt", "child already has a parent", nil)
	// ErrCycle rejects a parent link that would make a member their own ancestor.
	ErrCycle = NewError(CodeValidation, "adopt", "link would make a member their own ancestor", nil)
	// ErrNotParent is returned by disown when the link does not exist.
	ErrNotParent = NewError(CodeNotFound, "disown", "member is not the parent of that child", nil)
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code. Errors already carrying a code are
// returned unchanged so the innermost classification wins.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) ErrorCode {
	var fe *Error
	if !errors.As(err, &fe) {
		return ""
	}
	return fe.Code
}
