package service

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
)

// isStrongPassword validates that a password meets security requirements:
//   - At least 8 characters long
//   - Maximum 72 bytes (bcrypt limitation)
//   - Contains at least one uppercase letter
//   - Contains at least one lowercase letter
//   - Contains at least one digit
//   - Contains at least one special character
//
// Returns true if the password meets all requirements.
func isStrongPassword(password string) bool {
	// Check length constraints
	if len(password) < 8 {
		return false
	}

	// bcrypt has a maximum password length of 72 bytes
	if len([]byte(password)) > 72 {
		return false
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasSpecial
}

// isValidEmail validates an email address format.
// It checks:
//   - Valid RFC 5322 format using net/mail.ParseAddress
//   - Maximum length of 254 characters (RFC 5321)
//   - Non-empty string
//
// Returns true if the email is valid.
func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}

	// Trim whitespace
	email = strings.TrimSpace(email)

	// Use standard library to validate email format
	_, err := mail.ParseAddress(email)
	return err == nil
}

// lockEntry is one account mutex with its holder count / Verrou d'un compte et nombre de détenteurs
type lockEntry struct {
	mu       *sync.Mutex
	holders  int
	lastUsed time.Time
}

// formatLockoutDuration formats a duration into a human-readable string.
// Examples: "1 minute", "15 minutes", "45 seconds"
func formatLockoutDuration(d time.Duration) string {
	// Check if duration is less than 1 minute
	if d < time.Minute {
		seconds := int(d.Seconds())
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}

	// Duration is >= 1 minute
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// passwordPolicy describes isStrongPassword to clients / Décrit la politique de mot de passe
const passwordPolicy = "must be 8 to 72 bytes with uppercase, lowercase, digit and special character"

// formatValidity renders a token lifetime in French for emails / Durée de validité en français
// Examples: "24 heures", "1 heure", "30 minutes"
func formatValidity(d time.Duration) string {
	switch {
	case d <= 0:
		return "24 heures"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute).Minutes()))
	case d == time.Hour:
		return "1 heure"
	case d%(24*time.Hour) == 0 && d > 24*time.Hour:
		return fmt.Sprintf("%d jours", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%d heures", int(d.Round(time.Hour).Hours()))
	}
}

// formatEuros renders cents as a French amount / Formate des centimes en euros
// Examples: 1250000 -> "12 500,00 €"
func formatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s,%02d €", sign, b.String(), cents%100)
}

// excerpt shortens text to n runes for notifications / Raccourcit un texte pour les notifications
func excerpt(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// normalizeProfile trims every profile field / Nettoie les champs du profil
func normalizeProfile(p domain.Profile) domain.Profile {
	p.CompanyName = strings.TrimSpace(p.CompanyName)
	p.Siret = strings.ReplaceAll(strings.TrimSpace(p.Siret), " ", "")
	p.Phone = strings.TrimSpace(p.Phone)
	p.City = strings.TrimSpace(p.City)
	p.Description = strings.TrimSpace(p.Description)

	trades := []string{}
	for _, t := range strings.Split(p.Trades, ",") {
		if t = strings.TrimSpace(t); t != "" {
			trades = append(trades, t)
		}
	}
	p.Trades = strings.Join(trades, ",")
	return p
}

// validateProfile checks company fields / Vérifie les champs entreprise
// Members need a company name, staff accounts may leave it empty.
func validateProfile(role domain.UserRole, p domain.Profile, problems fieldErrors) {
	if p.CompanyName == "" {
		if !role.IsStaff() {
			problems.add("company_name", "is required")
		}
	} else if len(p.CompanyName) > 200 {
		problems.add("company_name", "must be at most 200 characters")
	}
	if p.Siret != "" && !isSiret(p.Siret) {
		problems.add("siret", "must be 14 digits")
	}
	if len(p.Phone) > 30 {
		problems.add("phone", "must be at most 30 characters")
	}
	if len(p.Description) > 2000 {
		problems.add("description", "must be at most 2000 characters")
	}
}

func isSiret(s string) bool {
	if len(s) != 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// formatDate renders a day as dd/mm/yyyy / Formate une date en jj/mm/aaaa
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}

func isPostalCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// appendUnique appends values missing from list, ignoring case / Ajoute les valeurs absentes
func appendUnique(list []string, values ...string) []string {
	seen := make(map[string]bool, len(list)+len(values))
	out := make([]string, 0, len(list)+len(values))
	for _, v := range append(list, values...) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
