package tracker

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Visitor identity is best-effort by contract: every storage failure below
// is swallowed so that a broken disk or sandbox never blocks tracking.

const (
	tokenDirName    = "project-zurich"
	tokenFileName   = "visitor_token"
	legacyTokenFile = ".zurich_visitor_token"
)

// ResolveToken derives the stable pseudonymous token for this machine.
// Precedence: an explicit token (from an invite URL) wins and is persisted
// immediately; otherwise the first previously stored token found; otherwise
// a freshly generated anonymous token, persisted before being returned.
// No network calls.
func ResolveToken(explicit string) string {
	if explicit != "" {
		persistToken(explicit)
		return explicit
	}
	if stored := storedToken(); stored != "" {
		return stored
	}
	anon := generateAnonToken()
	persistToken(anon)
	return anon
}

// persistToken writes to every available location so the token survives
// clearing of any single one.
func persistToken(token string) {
	if path := tokenPath(); path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0o700)
		_ = os.WriteFile(path, []byte(token), 0o600)
	}
	if path := legacyTokenPath(); path != "" {
		_ = os.WriteFile(path, []byte(token), 0o600)
	}
}

// storedToken returns the first token found across the storage locations.
func storedToken() string {
	for _, path := range []string{tokenPath(), legacyTokenPath()} {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if token := strings.TrimSpace(string(raw)); token != "" {
			return token
		}
	}
	return ""
}

func tokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, tokenDirName, tokenFileName)
}

func legacyTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, legacyTokenFile)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateAnonToken mints anon_<base36 millis>_<8 random base36 chars>.
func generateAnonToken() string {
	var sb strings.Builder
	sb.WriteString("anon_")
	sb.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 36))
	sb.WriteByte('_')

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Degrade to a time-derived suffix; uniqueness here is best-effort.
		sb.WriteString(strconv.FormatInt(time.Now().UnixNano()%2176782336, 36))
		return sb.String()
	}
	for _, b := range buf {
		sb.WriteByte(base36[int(b)%len(base36)])
	}
	return sb.String()
}
