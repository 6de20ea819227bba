package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.VenueA = cfg.VenueA
	redact(&out.VenueA.APIKey)
	redact(&out.VenueA.APISecret)

	out.VenueB = cfg.VenueB
	redact(&out.VenueB.APIKey)
	redact(&out.VenueB.APISecret)

	out.VenueC = cfg.VenueC
	redact(&out.VenueC.APIKey)
	redact(&out.VenueC.APISecret)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
