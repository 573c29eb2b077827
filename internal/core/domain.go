package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNotesLength is the maximum number of characters stored in Expense.Notes.
const MaxNotesLength = 100

const (
	CategoryStaff   Category = "Staff"
	CategoryTravel  Category = "Travel"
	CategoryFood    Category = "Food"
	CategoryUtility Category = "Utility"
)

// Categories lists every category in display order. The first entry is the default.
var Categories = []Category{CategoryStaff, CategoryTravel, CategoryFood, CategoryUtility}

type (
	// Category is one of the closed set of expense categories.
	Category string

	// Expense is the only persisted record. Once stored it is never updated,
	// only deleted as a whole.
	Expense struct {
		ID         int64
		Title      string
		Amount     Money
		Category   Category
		Notes      *string
		ReceiptRef *string // opaque path or URI, never dereferenced
		Timestamp  time.Time
	}
)

// Validation errors. Their messages are meant to be shown to the user as-is.
var (
	ErrEmptyTitle       = errors.New("Title cannot be empty")
	ErrInvalidAmount    = errors.New("Amount must be greater than ₹0")
	ErrNotesTooLong     = fmt.Errorf("Notes cannot exceed %d characters", MaxNotesLength)
	ErrDuplicateExpense = errors.New("Duplicate expense detected")
	ErrInvalidCategory  = errors.New("Unknown category")
	ErrMissingTimestamp = errors.New("Timestamp is required")
)

var validationErrors = []error{
	ErrEmptyTitle,
	ErrInvalidAmount,
	ErrNotesTooLong,
	ErrDuplicateExpense,
	ErrInvalidCategory,
	ErrMissingTimestamp,
}

// IsValidation reports whether err is (or wraps) one of the recoverable
// validation errors.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseCategory maps a category name onto the closed set. Matching ignores case
// and surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	return c.Index() >= 0
}

// Index returns the position of c in Categories, or -1.
func (c Category) Index() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return -1
}

func (c Category) String() string {
	return string(c)
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(e.Category))
	}
	if e.Notes != nil && utf8.RuneCountInString(*e.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// TruncateNotes clamps s to MaxNotesLength characters.
func TruncateNotes(s string) string {
	if utf8.RuneCountInString(s) <= MaxNotesLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxNotesLength])
}
