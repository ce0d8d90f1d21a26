package service

import (
	"crypto/md5"
	"encoding/hex"
	"hash/fnv"
	"strconv"
	"strings"
)

const gravatarBase = "https://www.gravatar.com/avatar/"

// gravatarURL is the fallback photo for accounts whose provider has no avatar.
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return gravatarBase + hex.EncodeToString(sum[:]) + "?d=identicon"
}

// fallbackNickname derives a stable handle from the provider identifier when
// the provider login is unusable or taken.
func fallbackNickname(identifier string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(identifier))
	return "u" + strconv.FormatUint(h.Sum64(), 36)
}

// usableNickname reports whether login can be used as a handle as is.
func usableNickname(login string) bool {
	return login != "" && len(login) <= 40 && nicknamePattern.MatchString(login)
}
