package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// TelegramAuth carries the fields the Telegram login widget signs.
type TelegramAuth struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	PhotoURL  string
	AuthDate  int64
	Hash      string
}

// VerifyTelegramSignature checks the login widget's HMAC-SHA256 signature
// against the bot token, per Telegram's data-check-string scheme.
func VerifyTelegramSignature(botToken string, auth TelegramAuth) bool {
	if botToken == "" {
		return false
	}

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
	if auth.PhotoURL != "" {
		values["photo_url"] = auth.PhotoURL
	}

	pairs := make([]string, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	digest := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, digest[:])
	h.Write([]byte(dataCheckString))
	expected := h.Sum(nil)
	provided, err := hex.DecodeString(strings.TrimSpace(auth.Hash))
	if err != nil {
		return false
	}
	if len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, provided) == 1
}
