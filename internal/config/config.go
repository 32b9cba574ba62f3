package config

type Config interface {
	ProviderConfig
	SessionConfig
	StoreConfig
}

type mainConfig struct {
	Provider
	Session
	Store
}

func New() Config {
	return mainConfig{}
}
