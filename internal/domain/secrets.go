package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// Имена переменных окружения, которые получает scanner-скрипт.
const (
	EnvFMPAPIKey        = "FMP_API_KEY"
	EnvTwilioAccountSID = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken  = "TWILIO_AUTH_TOKEN"
	EnvTwilioFromNumber = "TWILIO_FROM_NUMBER"
	EnvTwilioToNumber   = "TWILIO_TO_NUMBER"
)

// SecretNames — все секретные привязки в фиксированном порядке.
var SecretNames = []string{
	EnvFMPAPIKey,
	EnvTwilioAccountSID,
	EnvTwilioAuthToken,
	EnvTwilioFromNumber,
	EnvTwilioToNumber,
}

// SecretBindings — именованные учётные данные, которые передаются
// scanner-скрипту через окружение процесса.
//
// Значения непрозрачны: они не сохраняются в БД и не пишутся в лог.
// String и LogValue всегда возвращают замаскированное представление.
type SecretBindings struct {
	FMPAPIKey        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioToNumber   string
}

// SecretsFromLookup собирает привязки через функцию поиска (например, os.LookupEnv).
func SecretsFromLookup(lookup func(string) (string, bool)) SecretBindings {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return SecretBindings{
		FMPAPIKey:        get(EnvFMPAPIKey),
		TwilioAccountSID: get(EnvTwilioAccountSID),
		TwilioAuthToken:  get(EnvTwilioAuthToken),
		TwilioFromNumber: get(EnvTwilioFromNumber),
		TwilioToNumber:   get(EnvTwilioToNumber),
	}
}

// pairs возвращает пары имя/значение в порядке SecretNames.
func (s SecretBindings) pairs() [][2]string {
	return [][2]string{
		{EnvFMPAPIKey, s.FMPAPIKey},
		{EnvTwilioAccountSID, s.TwilioAccountSID},
		{EnvTwilioAuthToken, s.TwilioAuthToken},
		{EnvTwilioFromNumber, s.TwilioFromNumber},
		{EnvTwilioToNumber, s.TwilioToNumber},
	}
}

// Missing возвращает имена пустых привязок.
func (s SecretBindings) Missing() []string {
	var missing []string
	for _, p := range s.pairs() {
		if p[1] == "" {
			missing = append(missing, p[0])
		}
	}
	return missing
}

// Validate проверяет, что все пять секретов непустые.
func (s SecretBindings) Validate() error {
	if missing := s.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	return nil
}

// Env возвращает ровно пять записей "KEY=VALUE" для окружения процесса.
func (s SecretBindings) Env() []string {
	env := make([]string, 0, len(SecretNames))
	for _, p := range s.pairs() {
		env = append(env, p[0]+"="+p[1])
	}
	return env
}

// String реализует fmt.Stringer без раскрытия значений.
func (s SecretBindings) String() string {
	parts := make([]string, 0, len(SecretNames))
	for _, p := range s.pairs() {
		parts = append(parts, p[0]+"="+mask(p[1]))
	}
	return strings.Join(parts, " ")
}

// LogValue реализует slog.LogValuer: в логах видно только, задан ли секрет.
func (s SecretBindings) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(SecretNames))
	for _, p := range s.pairs() {
		attrs = append(attrs, slog.Bool(p[0], p[1] != ""))
	}
	return slog.GroupValue(attrs...)
}

// Redact заменяет значения секретов в тексте на "***".
// Используется для вывода внешних процессов перед записью в лог.
func (s SecretBindings) Redact(text string) string {
	for _, p := range s.pairs() {
		if p[1] != "" {
			text = strings.ReplaceAll(text, p[1], "***")
		}
	}
	return text
}

func mask(v string) string {
	if v == "" {
		return "<empty>"
	}
	return "***"
}
