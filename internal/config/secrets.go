package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files (".env" when none are given).
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, reads the secret from that file path.
// Otherwise falls back to the value of envName.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Account is one basic-auth user/password pair.
type Account struct {
	User string
	Pass string
}

// Configured reports whether both user and password are set.
func (a Account) Configured() bool {
	return a.User != "" && a.Pass != ""
}

// LoadAccounts resolves <prefix>_<ROLE>_USER and <prefix>_<ROLE>_PASS for each
// role, honouring the *_FILE convention. Roles without a complete pair are
// left out of the result.
func LoadAccounts(prefix string, roles ...string) (map[string]Account, error) {
	accounts := make(map[string]Account, len(roles))
	for _, role := range roles {
		base := prefix + "_" + strings.ToUpper(role)

		user, err := ResolveSecret(base + "_USER")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s_USER: %w", base, err)
		}
		pass, err := ResolveSecret(base + "_PASS")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s_PASS: %w", base, err)
		}

		if a := (Account{User: user, Pass: pass}); a.Configured() {
			accounts[role] = a
		}
	}
	return accounts, nil
}
