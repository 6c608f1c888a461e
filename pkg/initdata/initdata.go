// Package initdata validates Telegram Mini App init data using the
// HMAC-SHA256 scheme documented at
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidInitData indicates the payload is missing, malformed or fails
// the signature check.
var ErrInvalidInitData = errors.New("invalid init data")

// User is the authenticated mini-app visitor extracted from init data.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// TelegramID returns the user identifier as the string form used for
// catalog lookups.
func (u *User) TelegramID() string {
	return fmt.Sprintf("%d", u.ID)
}

// Validate verifies the init data signature against the bot token and
// returns the embedded user.
func Validate(initData, botToken string) (*User, error) {
	if initData == "" {
		return nil, ErrInvalidInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	calculated := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(calculated), []byte(receivedHash)) {
		return nil, ErrInvalidInitData
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, fmt.Errorf("%w: missing user payload", ErrInvalidInitData)
	}

	user := new(User)
	if err := json.Unmarshal([]byte(rawUser), user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	return user, nil
}
