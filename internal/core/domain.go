package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Custom   Frequency = "custom"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// DateLayout is the wire and storage format for dates.
const DateLayout = "2006-01-02"

type (
	Frequency       string
	TransactionType string
	Status          string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// MonthDay is a year-less calendar position used by custom schedules.
	MonthDay struct {
		Month int
		Day   int
	}

	Transaction struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      Money           `json:"amount"` // negative for expenses
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		Notes       string          `json:"notes,omitempty"`
		Status      Status          `json:"status"`
		RecurringID string          `json:"recurringId,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	RecurrenceDefinition struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Amount      Money           `json:"amount"` // magnitude, sign comes from Type
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Notes       string          `json:"notes,omitempty"`
		Frequency   Frequency       `json:"frequency"`
		CustomDates []MonthDay      `json:"customDates,omitempty"`
		EndDate     Date            `json:"endDate"`
		AutoConfirm bool            `json:"autoConfirm"`
		NextDueDate Date            `json:"nextDueDate"`
	}

	// State is everything the host persists between generation runs.
	State struct {
		Definitions  []RecurrenceDefinition `json:"recurringTransactions"`
		Transactions []Transaction          `json:"transactions"`
		Budgets      Budgets                `json:"budgets"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrMissingCustomDates = errors.New("custom frequency requires at least one date")
	ErrUnexpectedDates    = errors.New("custom dates are only allowed with custom frequency")
	ErrDuplicateDate      = errors.New("duplicate custom date")
	ErrInvalidMonthDay    = errors.New("invalid month-day, expected MM-DD")
	ErrEndBeforeStart     = errors.New("end date before start date")
	ErrDuplicateID        = errors.New("duplicate id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (optional dates such as EndDate)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(DateLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	unq, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(unq)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseMonthDay parses "MM-DD" (single digits accepted).
func ParseMonthDay(s string) (MonthDay, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return MonthDay{}, ErrInvalidMonthDay
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return MonthDay{}, ErrInvalidMonthDay
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return MonthDay{}, ErrInvalidMonthDay
	}
	md := MonthDay{Month: m, Day: d}
	if err := md.Validate(); err != nil {
		return MonthDay{}, err
	}
	return md, nil
}

// ParseCustomDates parses a comma separated list such as "03-15, 09-01".
func ParseCustomDates(s string) ([]MonthDay, error) {
	var out []MonthDay
	for _, raw := range strings.Split(s, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		md, err := ParseMonthDay(raw)
		if err != nil {
			return nil, &ValidationError{Field: "customDates", Err: fmt.Errorf("%q: %w", strings.TrimSpace(raw), err)}
		}
		out = append(out, md)
	}
	if err := validateCustomDates(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (md MonthDay) Validate() error {
	if md.Month < 1 || md.Month > 12 {
		return ErrInvalidMonth
	}
	// 2024 is a leap year so 02-29 is accepted
	if md.Day < 1 || md.Day > DaysIn(2024, time.Month(md.Month)) {
		return ErrInvalidDay
	}
	return nil
}

// Before compares as (month, day) tuples.
func (md MonthDay) Before(o MonthDay) bool {
	if md.Month != o.Month {
		return md.Month < o.Month
	}
	return md.Day < o.Day
}

// In places md in year, clamping to the month's last day (02-29 in non-leap years).
func (md MonthDay) In(year int) Date {
	day := md.Day
	if last := DaysIn(year, time.Month(md.Month)); day > last {
		day = last
	}
	return NewDate(year, md.Month, day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", md.Month, md.Day)
}

func (md MonthDay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(md.String())), nil
}

func (md *MonthDay) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return ErrInvalidMonthDay
	}
	parsed, err := ParseMonthDay(s)
	if err != nil {
		return err
	}
	*md = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Custom:
		return true
	default:
		return false
	}
}

// Signed applies the sign convention of t to a magnitude.
func (m Money) Signed(t TransactionType) Money {
	abs := m.Abs()
	if t == Expense {
		return Money{Cents: -abs.Cents}
	}
	return abs
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) IsPending() bool {
	return t.Status == StatusPending
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if len(strings.TrimSpace(t.Name)) == 0 {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len(t.Name) > 200 {
		return &ValidationError{Field: "name", Err: errors.New("name too long (max 200 characters)")}
	}
	if !t.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if err := t.Amount.Abs().Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if t.Type == Expense && strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	return nil
}

func (re RecurrenceDefinition) Validate() error {
	if len(strings.TrimSpace(re.Name)) == 0 {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len(re.Name) > 200 {
		return &ValidationError{Field: "name", Err: errors.New("name too long (max 200 characters)")}
	}
	if err := re.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if !re.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if re.Type == Expense && strings.TrimSpace(re.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if !re.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Err: fmt.Errorf("%w: %q", ErrInvalidFrequency, re.Frequency)}
	}

	switch {
	case re.Frequency == Custom && len(re.CustomDates) == 0:
		return &ValidationError{Field: "customDates", Err: ErrMissingCustomDates}
	case re.Frequency != Custom && len(re.CustomDates) > 0:
		return &ValidationError{Field: "customDates", Err: ErrUnexpectedDates}
	}
	if err := validateCustomDates(re.CustomDates); err != nil {
		return err
	}

	if !re.EndDate.IsEmpty() {
		if err := re.EndDate.Validate(); err != nil {
			return &ValidationError{Field: "endDate", Err: err}
		}
	}
	return nil
}

func validateCustomDates(dates []MonthDay) error {
	seen := make(map[MonthDay]struct{}, len(dates))
	for _, md := range dates {
		if err := md.Validate(); err != nil {
			return &ValidationError{Field: "customDates", Err: fmt.Errorf("%s: %w", md, err)}
		}
		if _, ok := seen[md]; ok {
			return &ValidationError{Field: "customDates", Err: fmt.Errorf("%w: %s", ErrDuplicateDate, md)}
		}
		seen[md] = struct{}{}
	}
	return nil
}
