package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func signTelegramAuth(botToken string, auth TelegramAuth) string {
	values := map[string]string{
		"auth_date": fmt.Sprintf("%d", auth.AuthDate),
		"id":        fmt.Sprintf("%d", auth.ID),
	}
	if auth.Username != "" {
		values["username"] = auth.Username
	}
	if auth.FirstName != "" {
		values["first_name"] = auth.FirstName
	}
	if auth.LastName != "" {
		values["last_name"] = auth.LastName
	}
	pairs := make([]string, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	digest := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, digest[:])
	h.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifyTelegramSignature(t *testing.T) {
	auth := TelegramAuth{
		ID:        123456,
		Username:  "exampleUser",
		FirstName: "Example",
		LastName:  "User",
		AuthDate:  1764561600,
	}
	auth.Hash = signTelegramAuth("bot-token", auth)

	require.True(t, VerifyTelegramSignature("bot-token", auth))
	require.False(t, VerifyTelegramSignature("other-token", auth))

	tampered := auth
	tampered.Username = "mallory"
	require.False(t, VerifyTelegramSignature("bot-token", tampered))

	auth.Hash = "zz"
	require.False(t, VerifyTelegramSignature("bot-token", auth))

	require.False(t, VerifyTelegramSignature("", auth), "missing bot token never verifies")
}
