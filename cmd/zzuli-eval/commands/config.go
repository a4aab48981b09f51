package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"
	"zzuli-evaluation/lib/configutil"
	"zzuli-evaluation/lib/platforms/zzuli"
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/lib/platforms/zzuli/qrlogin"
	"zzuli-evaluation/services/autoeval"
)

type EvaluationConfig struct {
	Score   string `json:"score"`
	Comment string `json:"comment"`
	// DelayMs is the minimum time between two submissions.
	DelayMs int `json:"delay_ms"`
	// Skip lists keywords, courses whose name contains one are never submitted.
	Skip []string `json:"skip"`
}

type Config struct {
	Username string `json:"username"`
	// Password is optional, it is prompted for when empty.
	Password         string           `json:"password"`
	Endpoints        zzuli.Endpoints  `json:"endpoints"`
	Evaluation       EvaluationConfig `json:"evaluation"`
	QRTimeoutSeconds int              `json:"qr_timeout_seconds"`
	// Ledger is the path of the sqlite ledger, "<dev_state>" is resolved.
	Ledger string `json:"ledger"`
	// DumpHttp is a directory every http exchange is written to when set.
	DumpHttp string `json:"dump_http"`
	// Schedule is the cron spec of the watch command.
	Schedule string `json:"schedule"`
}

func defaultConfig() Config {
	return Config{
		Endpoints: zzuli.DefaultEndpoints(),
		Evaluation: EvaluationConfig{
			Score:   jwgl.DefaultScore,
			Comment: jwgl.DefaultComment,
			DelayMs: int(autoeval.DefaultDelay / time.Millisecond),
		},
		QRTimeoutSeconds: int(qrlogin.DefaultTimeout / time.Second),
		Ledger:           "<dev_state>/ledger.db",
		Schedule:         "0 9 * * *",
	}
}

// loadConfig reads the config file (and its .local override) when present,
// fills in the defaults and applies the environment.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		err = nil
	}
	if err != nil {
		return Config{}, err
	}

	cfg, err = configutil.WithDefaults(cfg, defaultConfig())
	if err != nil {
		return Config{}, err
	}
	cfg.Username = configutil.EnvOverride(cfg.Username, "ZZULI_USERNAME")
	cfg.Password = configutil.EnvOverride(cfg.Password, "ZZULI_PASSWORD")
	cfg.Ledger = configutil.EnvOverride(cfg.Ledger, "ZZULI_LEDGER")

	cfg.Endpoints, err = cfg.Endpoints.Normalize()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) evaluation() jwgl.Evaluation {
	return jwgl.Evaluation{
		Score:   c.Evaluation.Score,
		Comment: c.Evaluation.Comment,
	}
}

func (c Config) delay() time.Duration {
	return time.Duration(c.Evaluation.DelayMs) * time.Millisecond
}

func (c Config) qrTimeout() time.Duration {
	return time.Duration(c.QRTimeoutSeconds) * time.Second
}
