package config

const (
	defaultConfigPath             = "~/.config/splitsheet/config.toml"
	defaultStateDir               = "~/.local/share/splitsheet"
	defaultArtifactDir            = "~/.local/share/splitsheet/artifacts"
	defaultLogDir                 = "~/.local/share/splitsheet/logs"
	defaultAPIBind                = "127.0.0.1:7591"
	defaultPublicURL              = "http://127.0.0.1:7591"
	defaultReadTimeoutSeconds     = 15
	defaultWriteTimeoutSeconds    = 30
	defaultCountry                = "DM"
	defaultRegistrant             = "A0D"
	defaultFallbackContributorID  = 99
	defaultAllocationAttempts     = 8
	defaultLedgerPolicy           = "strict"
	defaultNotificationChannel    = "log"
	defaultSigningBaseURL         = "http://127.0.0.1:7591"
	defaultNtfyServer             = "https://ntfy.sh"
	defaultSMTPPort               = 587
	defaultNotifyTimeoutSeconds   = 10
	defaultNotifyConcurrency      = 4
	defaultWebhookToleranceSecond = 300
	defaultBasePrice              = 25.0
	defaultCurrency               = "usd"
	defaultLinkTTLMinutes         = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// DefaultContributors is the managed-contributor table shipped with the sample
// configuration.
func DefaultContributors() map[string]int {
	return map[string]int{
		"Lí-Lí Octave":                 0,
		"LI-LI OCTAVE":                 0,
		"LIANNE MARILDA MARISA LETANG": 0,
		"JCro":                         1,
		"Karlvin Deravariere":          1,
		"Janet Azzouz":                 2,
		"Princess Trinidad":            4,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
		},
		API: API{
			Bind:                defaultAPIBind,
			PublicURL:           defaultPublicURL,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		WorkCode: WorkCode{
			Country:               defaultCountry,
			Registrant:            defaultRegistrant,
			FallbackContributorID: defaultFallbackContributorID,
			MaxAttempts:           defaultAllocationAttempts,
		},
		Ledger: Ledger{Policy: defaultLedgerPolicy},
		Notifications: Notifications{
			Channel:               defaultNotificationChannel,
			SigningBaseURL:        defaultSigningBaseURL,
			NtfyServer:            defaultNtfyServer,
			SMTPPort:              defaultSMTPPort,
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
			Concurrency:           defaultNotifyConcurrency,
		},
		Payments: Payments{
			ToleranceSeconds: defaultWebhookToleranceSecond,
			BasePrice:        defaultBasePrice,
			Currency:         defaultCurrency,
		},
		Downloads: Downloads{LinkTTLMinutes: defaultLinkTTLMinutes},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
