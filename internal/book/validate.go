package book

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate  *validator.Validate
	isbn10Re  = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13Re  = regexp.MustCompile(`^\d{13}$`)
	errFields = errors.New("invalid book input")
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"isbn":          validateISBN,
		"book_status":   validateStatus,
		"book_format":   validateFormat,
		"calendar_date": validateDate,
	}
	for tag, fn := range rules {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("book: register %q validation: %v", tag, err))
		}
	}
}

func validateISBN(fl validator.FieldLevel) bool {
	isbn := NormalizeID(fl.Field().String())
	return isbn10Re.MatchString(isbn) || isbn13Re.MatchString(isbn)
}

func validateStatus(fl validator.FieldLevel) bool {
	_, ok := ParseStatus(fl.Field().String())
	return ok
}

func validateFormat(fl validator.FieldLevel) bool {
	return len(ParseFormats(fl.Field().String())) > 0
}

func validateDate(fl validator.FieldLevel) bool {
	return !Date(fl.Field().String()).IsZero()
}

// Input is the user-editable part of a book as submitted by the add/edit form.
type Input struct {
	ID            string   `json:"id" validate:"omitempty,isbn"`
	Title         string   `json:"title" validate:"required,max=500"`
	Author        string   `json:"author" validate:"required,max=300"`
	Genre         string   `json:"genre" validate:"required,max=100"`
	Publisher     string   `json:"publisher" validate:"required,max=200"`
	Synopsis      string   `json:"synopsis" validate:"required,max=5000"`
	PageCount     int      `json:"page_count" validate:"gt=0"`
	DatePublished string   `json:"date_published" validate:"required,calendar_date"`
	CoverURL      string   `json:"cover_url" validate:"required,url"`
	Status        string   `json:"status" validate:"required,book_status"`
	Formats       []string `json:"formats" validate:"required,min=1,dive,book_format"`
	UserRating    int      `json:"user_rating" validate:"gte=0,lte=5"`
	DateStarted   string   `json:"date_started" validate:"omitempty,calendar_date"`
	DateFinished  string   `json:"date_finished" validate:"omitempty,calendar_date"`
	InSeries      bool     `json:"in_series"`
	SeriesName    string   `json:"series_name" validate:"max=200"`
	SeriesNumber  float64  `json:"series_number"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return fmt.Sprintf("%v: %s", errFields, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return errFields
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	return errors.Is(err, errFields)
}

// Validate checks the struct tags and the rules that span several fields.
func (in Input) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Synopsis = strings.TrimSpace(in.Synopsis)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	in.SeriesName = strings.TrimSpace(in.SeriesName)

	var fields []FieldError
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   jsonName(fe.Field()),
				Message: tagMessage(fe),
			})
		}
	}

	if status, ok := ParseStatus(in.Status); ok && status == StatusFinished && in.UserRating == 0 {
		fields = append(fields, FieldError{Field: "user_rating", Message: "a rating is required for finished books"})
	}
	if in.InSeries {
		if in.SeriesName == "" {
			fields = append(fields, FieldError{Field: "series_name", Message: "series name is required"})
		}
		if in.SeriesNumber <= 0 {
			fields = append(fields, FieldError{Field: "series_number", Message: "series number must be positive (e.g. 1, 1.5, 2)"})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Book converts the input into a normalized record. Dates that depend on the
// previous state are left to the caller.
func (in Input) Book() Book {
	formats := make([]Format, 0, len(in.Formats))
	for _, f := range in.Formats {
		formats = append(formats, Format(f))
	}
	status, _ := ParseStatus(in.Status)

	b := Book{
		ID:            in.ID,
		Title:         in.Title,
		Author:        in.Author,
		Genre:         in.Genre,
		Publisher:     in.Publisher,
		Status:        status,
		Formats:       formats,
		UserRating:    in.UserRating,
		DatePublished: Date(in.DatePublished),
		DateStarted:   Date(in.DateStarted),
		DateFinished:  Date(in.DateFinished),
		CoverURL:      in.CoverURL,
		Synopsis:      in.Synopsis,
	}
	if in.PageCount > 0 {
		b.PageCount = IntPtr(in.PageCount)
	}
	if in.InSeries {
		b.Series = &Series{Name: in.SeriesName, Number: in.SeriesNumber}
	}
	return Normalize(b)
}

func tagMessage(fe validator.FieldError) string {
	field := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 5", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "isbn":
		return fmt.Sprintf("%s must be a valid ISBN (10 or 13 digits)", field)
	case "book_status":
		return fmt.Sprintf("%s must be one of to_read, reading, finished, abandoned", field)
	case "book_format":
		return fmt.Sprintf("%s must contain only physical, ebook or audio", field)
	case "calendar_date":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonName trims the index that dive appends, so formats[1] reports as formats.
func jsonName(field string) string {
	if i := strings.IndexByte(field, '['); i > 0 {
		return field[:i]
	}
	return field
}
