package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// referenceHash follows the published algorithm step by step, without Sign.
func referenceHash(t *testing.T, fields url.Values, token string) string {
	t.Helper()
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	key := secret.Sum(nil)
	require.Len(t, key, 32)

	var lines []string
	for _, k := range []string{"auth_date", "query_id", "user"} {
		if v, ok := fields[k]; ok {
			lines = append(lines, k+"="+v[0])
		}
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedPayload(t *testing.T, user string) (string, string) {
	t.Helper()
	fields := url.Values{}
	fields.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	fields.Set("user", user)
	fields.Set("auth_date", "1700000000")
	hash := referenceHash(t, fields, testBotToken)
	fields.Set("hash", hash)
	return fields.Encode(), hash
}

func TestValidateInitData_Valid(t *testing.T) {
	raw, _ := signedPayload(t, `{"id":279058397,"username":"vdkfrost","first_name":"Vladislav","last_name":"Kibenko"}`)

	data, err := ValidateInitData(raw, testBotToken)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, int64(279058397), data.User.ID)
	assert.Equal(t, "vdkfrost", data.User.Username)
	assert.Equal(t, "Vladislav", data.User.FirstName)
	assert.Equal(t, "Kibenko", data.User.LastName)
	assert.Equal(t, "AAHdF6IQAAAAAN0XohDhrOrc", data.QueryID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), data.AuthDate)
}

func TestValidateInitData_FieldOrderDoesNotMatter(t *testing.T) {
	_, hash := signedPayload(t, `{"id":1}`)
	raw := "user=" + url.QueryEscape(`{"id":1}`) + "&hash=" + hash + "&auth_date=1700000000&query_id=AAHdF6IQAAAAAN0XohDhrOrc"

	data, err := ValidateInitData(raw, testBotToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), data.User.ID)
}

func TestValidateInitData_FlippedHashByteRejected(t *testing.T) {
	raw, hash := signedPayload(t, `{"id":42}`)

	for i := 0; i < len(hash); i++ {
		flipped := []byte(hash)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}
		tampered := strings.Replace(raw, "hash="+hash, "hash="+string(flipped), 1)

		data, err := ValidateInitData(tampered, testBotToken)
		assert.Nil(t, data, "byte %d", i)
		assert.ErrorIs(t, err, ErrHashMismatch, "byte %d", i)
	}
}

func TestValidateInitData_WrongToken(t *testing.T) {
	raw, _ := signedPayload(t, `{"id":42}`)

	data, err := ValidateInitData(raw, "654321:other")
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestValidateInitData_TamperedField(t *testing.T) {
	raw, _ := signedPayload(t, `{"id":42}`)
	tampered := strings.Replace(raw, "auth_date=1700000000", "auth_date=1800000000", 1)

	data, err := ValidateInitData(tampered, testBotToken)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestValidateInitData_MissingHash(t *testing.T) {
	cases := map[string]string{
		"no hash":    "auth_date=1700000000&user=%7B%22id%22%3A1%7D",
		"empty hash": "auth_date=1700000000&hash=",
		"only hash":  "hash=",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := ValidateInitData(raw, testBotToken)
			assert.Nil(t, data)
			assert.ErrorIs(t, err, ErrMissingHash)
		})
	}
}

func TestValidateInitData_EmptyAndMalformed(t *testing.T) {
	data, err := ValidateInitData("", testBotToken)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrEmptyInitData)

	data, err = ValidateInitData("user=%zz&hash=abc", testBotToken)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrMalformedInitData)
}

func TestValidateInitData_LengthMismatchSkipsComparator(t *testing.T) {
	calls := 0
	orig := constantTimeEqual
	constantTimeEqual = func(a, b []byte) bool {
		calls++
		return orig(a, b)
	}
	defer func() { constantTimeEqual = orig }()

	raw, hash := signedPayload(t, `{"id":42}`)

	short := strings.Replace(raw, "hash="+hash, "hash="+hash[:10], 1)
	data, err := ValidateInitData(short, testBotToken)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.Equal(t, 0, calls)

	_, err = ValidateInitData(raw, testBotToken)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestValidateInitData_UnparseableUserIsEmptyIdentity(t *testing.T) {
	for _, user := range []string{"not-json", ""} {
		fields := url.Values{}
		fields.Set("auth_date", "1700000000")
		if user != "" {
			fields.Set("user", user)
		}
		fields.Set("hash", Sign(DataCheckString(fields), testBotToken))

		data, err := ValidateInitData(fields.Encode(), testBotToken)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, User{}, data.User)
	}
}

func TestDataCheckString(t *testing.T) {
	values := url.Values{
		"user":      {`{"id":1,"first_name":"A B"}`},
		"auth_date": {"1"},
		"Zeta":      {"z"},
	}
	// Byte ordering puts upper case before lower case.
	assert.Equal(t, "Zeta=z\nauth_date=1\nuser={\"id\":1,\"first_name\":\"A B\"}", DataCheckString(values))
	assert.Equal(t, "", DataCheckString(url.Values{}))
}
