package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakSecretScoreThreshold = 3

// IsWeakSecret reports whether a shared secret is guessable enough to warn
// about at startup. An empty secret disables signature checks entirely and is
// reported separately, so it is not considered weak here.
func IsWeakSecret(secret string) bool {
	if secret == "" {
		return false
	}
	return zxcvbn.PasswordStrength(secret, nil).Score < weakSecretScoreThreshold
}
