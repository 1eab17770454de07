package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// WeightTolerance is the accepted distance between a basket's weight sum and 1.0.
const WeightTolerance = 0.0001

const dateLayout = "2006-01-02"

type (
	// Date is a calendar day. Values built with NewDate, DateOf or ParseDate
	// are normalised to UTC midnight and can be compared with == and used as
	// map keys.
	Date struct {
		time.Time
	}

	// Point is one observation of a series.
	Point struct {
		Date  Date    `json:"date"`
		Value float64 `json:"value"`
	}

	BasketItem struct {
		Category string  `json:"category" validate:"notblank"`
		Weight   float64 `json:"weight" validate:"gt=0"`
		SeriesID string  `json:"seriesId" validate:"notblank"`
	}

	// Basket is a named, ordered list of weighted series. Item order matters:
	// the first item's series defines the composite's calendar.
	Basket struct {
		ID        string       `json:"id"`
		Name      string       `json:"name" validate:"notblank"`
		Items     []BasketItem `json:"items" validate:"required,min=1,dive"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	// TimelinePoint pairs the personal and national index on one date.
	TimelinePoint struct {
		Date     Date    `json:"date"`
		Personal float64 `json:"personal"`
		National float64 `json:"national"`
	}
)

var (
	ErrEmptyName     = errors.New("basket name must be a non-empty string")
	ErrNoItems       = errors.New("basket must have at least one item")
	ErrEmptyCategory = errors.New("each item must have a category")
	ErrInvalidWeight = errors.New("each item must have a positive weight")
	ErrEmptySeriesID = errors.New("each item must have a seriesId")
	ErrWeightSum     = errors.New("weights must sum to 1.0")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidBasket = errors.New("invalid basket")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// NewDate creates a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t, as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return DateOf(t), nil
}

// Normalize drops any time-of-day and location information.
func (d Date) Normalize() Date {
	return DateOf(d.Time)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Validate performs basic checks on Date.
func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero value", ErrInvalidDate)
	}
	return nil
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Full timestamps are accepted and truncated to their calendar day.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TotalWeight returns the sum of the item weights.
func (b Basket) TotalWeight() float64 {
	var total float64
	for _, item := range b.Items {
		total += item.Weight
	}
	return total
}

// SeriesIDs returns the distinct series referenced by the basket, in item order.
func (b Basket) SeriesIDs() []string {
	seen := make(map[string]struct{}, len(b.Items))
	ids := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		if _, ok := seen[item.SeriesID]; ok {
			continue
		}
		seen[item.SeriesID] = struct{}{}
		ids = append(ids, item.SeriesID)
	}
	return ids
}

// Normalize trims names and identifiers.
func (b Basket) Normalize() Basket {
	out := b
	out.Name = strings.TrimSpace(b.Name)
	out.Items = make([]BasketItem, len(b.Items))
	for i, item := range b.Items {
		out.Items[i] = BasketItem{
			Category: strings.TrimSpace(item.Category),
			Weight:   item.Weight,
			SeriesID: strings.TrimSpace(item.SeriesID),
		}
	}
	return out
}

// Validate checks the basket shape and that the weights sum to 1.0 within
// WeightTolerance. The first violation is returned.
func (b Basket) Validate() error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	total := b.TotalWeight()
	if math.IsNaN(total) || math.Abs(total-1.0) > WeightTolerance {
		return fmt.Errorf("%w (got %g)", ErrWeightSum, total)
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.StructField() {
	case "Name":
		return ErrEmptyName
	case "Items":
		return ErrNoItems
	case "Category":
		return ErrEmptyCategory
	case "Weight":
		return ErrInvalidWeight
	case "SeriesID":
		return ErrEmptySeriesID
	default:
		return fmt.Errorf("%w: %s failed validation: %s", ErrInvalidBasket, fe.Field(), fe.Tag())
	}
}

// IsValidationError reports whether err comes from basket or date validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyName, ErrNoItems, ErrEmptyCategory, ErrInvalidWeight,
		ErrEmptySeriesID, ErrWeightSum, ErrInvalidDate, ErrInvalidBasket,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
