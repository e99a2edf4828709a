package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "KR"

var genders = []any{"", "male", "female", "other"}

// ProfileFields are the optional member attributes collected at registration
type ProfileFields struct {
	Nickname      string   `json:"nickname"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone_number"`
	BirthDate     string   `json:"birth_date"`
	Gender        string   `json:"gender"`
	Address       string   `json:"address"`
	AreaInterests []string `json:"area_interests"`
}

// Validate will validate the profile
func (p ProfileFields) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Nickname, validation.Length(0, 30)),
		validation.Field(&p.Name, validation.Length(0, 100)),
		validation.Field(&p.BirthDate, validation.Date("2006-01-02")),
		validation.Field(&p.Gender, validation.In(genders...)),
		validation.Field(&p.Address, validation.Length(0, 255)),
		validation.Field(&p.AreaInterests, validation.Length(0, 10)),
	)
}

// NormalizePhone returns the number in E.164 form. Empty input stays empty.
func NormalizePhone(phone, region string) (string, error) {
	if phone == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithTextCode("INVALID_PHONE")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE").
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// AgeAt returns the full years between birthDate (YYYY-MM-DD) and now.
// A birthday that has not come yet this year does not count.
func AgeAt(birthDate string, now time.Time) (int, bool) {
	born, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return 0, false
	}

	y, m, d := now.Date()
	age := y - born.Year()
	if m < born.Month() || (m == born.Month() && d < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// normalized validates the profile and canonicalizes its phone number
func (p ProfileFields) normalized(region string) (ProfileFields, error) {
	if err := p.Validate(); err != nil {
		return p, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile")
	}

	phone, err := NormalizePhone(p.Phone, region)
	if err != nil {
		return p, err
	}
	p.Phone = phone

	return p, nil
}
