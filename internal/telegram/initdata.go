// Package telegram validates the init-data a Telegram Mini-App receives.
// See https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const webAppDataKey = "WebAppData"

var (
	ErrEmptyInitData     = errors.New("init data is empty")
	ErrMalformedInitData = errors.New("init data is not a valid query string")
	ErrMissingHash       = errors.New("init data has no hash")
	ErrHashMismatch      = errors.New("init data hash mismatch")
)

// constantTimeEqual is swapped in tests to observe comparator calls.
var constantTimeEqual = func(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// User is the identity embedded in the "user" field.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// InitData is a verified init-data payload.
type InitData struct {
	User       User
	AuthDate   time.Time // zero when the payload carries no auth_date
	QueryID    string
	StartParam string
}

// ValidateInitData checks the signature of raw init-data against the bot
// token. It returns either the verified payload or a nil payload with the
// rejection reason, never both.
func ValidateInitData(initData, botToken string) (*InitData, error) {
	if initData == "" {
		return nil, ErrEmptyInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrMalformedInitData
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	values.Del("hash")

	expected := Sign(DataCheckString(values), botToken)
	if len(expected) != len(hash) {
		return nil, ErrHashMismatch
	}
	if !constantTimeEqual([]byte(expected), []byte(hash)) {
		return nil, ErrHashMismatch
	}

	data := &InitData{
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
	}
	if raw := values.Get("user"); raw != "" {
		// An unparseable user object leaves the identity empty.
		var u User
		if json.Unmarshal([]byte(raw), &u) == nil {
			data.User = u
		}
	}
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err == nil && ts > 0 {
		data.AuthDate = time.Unix(ts, 0).UTC()
	}
	return data, nil
}

// DataCheckString builds the canonical "key=value" lines, sorted by key.
// The hash field must already be removed.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

// Sign returns the hex HMAC of a data-check string as Telegram computes it.
func Sign(dataCheckString, botToken string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}
