package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
)

const testBotToken = "1234567:test-token"

// sign produces valid init data for the given fields, mirroring the scheme
// Telegram documents for Mini Apps.
func sign(t *testing.T, fields map[string]string, botToken string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+fields[key])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields() map[string]string {
	return map[string]string{
		"auth_date": "1772800000",
		"query_id":  "AAF03Qc0AAAAAPTdBzQbc8Zt",
		"user":      `{"id":873127412,"first_name":"Иван","last_name":"Петров","username":"ivan"}`,
	}
}

func TestValidate(t *testing.T) {
	data := sign(t, validFields(), testBotToken)

	user, err := Validate(data, testBotToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if user.ID != 873127412 {
		t.Errorf("id = %d, want 873127412", user.ID)
	}
	if user.FirstName != "Иван" || user.Username != "ivan" {
		t.Errorf("user = %+v", user)
	}
	if user.TelegramID() != "873127412" {
		t.Errorf("TelegramID() = %q", user.TelegramID())
	}
}

func TestValidateRejectsWrongToken(t *testing.T) {
	data := sign(t, validFields(), "other-token")

	if _, err := Validate(data, testBotToken); !errors.Is(err, ErrInvalidInitData) {
		t.Errorf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	data := sign(t, validFields(), testBotToken)
	tampered := strings.Replace(data, "auth_date=1772800000", "auth_date=1772800001", 1)

	if _, err := Validate(tampered, testBotToken); !errors.Is(err, ErrInvalidInitData) {
		t.Errorf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no hash", "auth_date=1772800000&user=%7B%7D"},
		{"junk", "%zz"},
	}

	for _, tc := range cases {
		if _, err := Validate(tc.data, testBotToken); !errors.Is(err, ErrInvalidInitData) {
			t.Errorf("%s: err = %v, want ErrInvalidInitData", tc.name, err)
		}
	}
}

func TestValidateRequiresUserPayload(t *testing.T) {
	fields := validFields()
	delete(fields, "user")
	data := sign(t, fields, testBotToken)

	if _, err := Validate(data, testBotToken); !errors.Is(err, ErrInvalidInitData) {
		t.Errorf("err = %v, want ErrInvalidInitData", err)
	}
}
