package locale

import (
	"errors"
	"testing"
)

func TestValidateTimezone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "iana", in: "Europe/Berlin", want: "Europe/Berlin"},
		{name: "utc", in: "UTC", want: "UTC"},
		{name: "abbrev gmt", in: "gmt", want: "UTC"},
		{name: "abbrev pst", in: "PST", want: "America/Los_Angeles"},
		{name: "trimmed", in: "  Asia/Tokyo ", want: "Asia/Tokyo"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, loc, err := ValidateTimezone(tt.in)
			if err != nil {
				t.Fatalf("ValidateTimezone(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("name = %q, want %q", got, tt.want)
			}
			if loc == nil {
				t.Fatal("location is nil")
			}
		})
	}
}

func TestValidateTimezoneUnknown(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "Mars/Olympus", "not a zone"} {
		if _, _, err := ValidateTimezone(in); !errors.Is(err, ErrUnknownTimezone) {
			t.Fatalf("ValidateTimezone(%q) = %v, want ErrUnknownTimezone", in, err)
		}
	}
}

func TestValidateLocaleDateOrder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    string
		lang  string
		order DateOrder
	}{
		{in: "en", lang: "en", order: OrderMDY},
		{in: "en-US", lang: "en", order: OrderMDY},
		{in: "en-GB", lang: "en", order: OrderDMY},
		{in: "en_GB", lang: "en", order: OrderDMY},
		{in: "de", lang: "de", order: OrderDMY},
		{in: "fr-FR", lang: "fr", order: OrderDMY},
		{in: "ja", lang: "ja", order: OrderYMD},
		{in: "zh-CN", lang: "zh", order: OrderYMD},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateLocale(tt.in)
			if err != nil {
				t.Fatalf("ValidateLocale(%q) error: %v", tt.in, err)
			}
			if got.Language != tt.lang {
				t.Fatalf("Language = %q, want %q", got.Language, tt.lang)
			}
			if got.DateOrder != tt.order {
				t.Fatalf("DateOrder = %v, want %v", got.DateOrder, tt.order)
			}
		})
	}
}

func TestValidateLocaleUnknown(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "???", "not a locale at all"} {
		if _, err := ValidateLocale(in); !errors.Is(err, ErrUnknownLocale) {
			t.Fatalf("ValidateLocale(%q) = %v, want ErrUnknownLocale", in, err)
		}
	}
}
