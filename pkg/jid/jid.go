// Package jid contains helpers for WhatsApp JID strings.
package jid

import "strings"

const (
	// UserServer is the domain suffix of a regular user account.
	UserServer = "@s.whatsapp.net"
	// GroupServer is the domain suffix of a group chat.
	GroupServer = "@g.us"
	// LIDServer is the domain suffix of a linked-device alias.
	LIDServer = "@lid"
	// Broadcast is the status broadcast pseudo chat.
	Broadcast = "status@broadcast"
)

// IsGroup reports whether id addresses a group chat.
func IsGroup(id string) bool {
	return strings.HasSuffix(id, GroupServer)
}

// IsUser reports whether id addresses a single user, in either the
// standard or the linked-device encoding.
func IsUser(id string) bool {
	return strings.HasSuffix(id, UserServer) || strings.HasSuffix(id, LIDServer)
}

// Normalize strips a device segment ("628123:12@s.whatsapp.net" becomes
// "628123@s.whatsapp.net") and lower-cases the result.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	user, server, hasServer := strings.Cut(id, "@")
	if i := strings.Index(user, ":"); i >= 0 {
		user = user[:i]
	}
	if hasServer {
		return strings.ToLower(user + "@" + server)
	}
	return strings.ToLower(user)
}

// BaseNumber returns the user part of id with any device segment removed.
func BaseNumber(id string) string {
	user, _, _ := strings.Cut(strings.TrimSpace(id), ":")
	user, _, _ = strings.Cut(user, "@")
	return strings.ToLower(user)
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SelfUser converts the session self identity ("628123:7@s.whatsapp.net")
// into the canonical user id of the bot.
func SelfUser(self string) string {
	user, _, _ := strings.Cut(self, ":")
	user, _, _ = strings.Cut(user, "@")
	digits := Digits(user)
	if digits == "" {
		return ""
	}
	return digits + UserServer
}

// FromNumber builds a user id from a phone number in any notation.
func FromNumber(number string) string {
	digits := Digits(number)
	if digits == "" {
		return ""
	}
	return digits + UserServer
}
