package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Chain.EVM.PairFeeds != nil {
		out.Chain.EVM.PairFeeds = make(map[string]string, len(cfg.Chain.EVM.PairFeeds))
		for k, v := range cfg.Chain.EVM.PairFeeds {
			out.Chain.EVM.PairFeeds[k] = v
		}
	}
	if cfg.Chain.SVM.PairFeeds != nil {
		out.Chain.SVM.PairFeeds = make(map[string]string, len(cfg.Chain.SVM.PairFeeds))
		for k, v := range cfg.Chain.SVM.PairFeeds {
			out.Chain.SVM.PairFeeds[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
