package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-member-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		region  string
		want    string
		wantErr bool
	}{
		{name: "empty stays empty", phone: "", want: ""},
		{name: "local korean mobile", phone: "010-1234-5678", want: "+821012345678"},
		{name: "already international", phone: "+82 10 1234 5678", want: "+821012345678"},
		{name: "explicit region", phone: "(415) 555-2671", region: "US", want: "+14155552671"},
		{name: "not a number", phone: "call me", wantErr: true},
		{name: "too short", phone: "010", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.NormalizePhone(tt.phone, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfileFieldsValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile auth.ProfileFields
		wantErr bool
	}{
		{name: "empty profile", profile: auth.ProfileFields{}},
		{
			name: "complete profile",
			profile: auth.ProfileFields{
				Nickname:      "alice",
				Name:          "Alice Kim",
				BirthDate:     "1990-01-31",
				Gender:        "female",
				AreaInterests: []string{"seoul"},
			},
		},
		{name: "bad birth date", profile: auth.ProfileFields{BirthDate: "1990/01/31"}, wantErr: true},
		{name: "unknown gender", profile: auth.ProfileFields{Gender: "robot"}, wantErr: true},
		{name: "long nickname", profile: auth.ProfileFields{Nickname: "this nickname is far too long to be accepted"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthDate string
		want      int
		ok        bool
	}{
		{"birthday passed", "1990-01-15", 34, true},
		{"birthday today", "1990-06-01", 34, true},
		{"birthday tomorrow", "1990-06-02", 33, true},
		{"leap day", "2000-02-29", 24, true},
		{"born today", "2024-06-01", 0, true},
		{"future", "2025-01-01", 0, false},
		{"empty", "", 0, false},
		{"malformed", "01/15/1990", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := auth.AgeAt(tt.birthDate, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	age, _ := auth.AgeAt("2000-02-29", time.Date(2001, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, age)
}
