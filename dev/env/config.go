package devenv

// LiveConfig is read from <dev_state>/zzuli.json5 by the live tests, which are
// skipped when the file does not exist.
type LiveConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func LoadLiveConfig() (LiveConfig, error) {
	return GetStateConfig[LiveConfig]("zzuli.json5")
}
