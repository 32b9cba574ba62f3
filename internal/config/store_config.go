package config

// StoreConfig selects and parameterizes the credential store backend.
type StoreConfig interface {
	// GetStoreBackend returns "file", "redis" or "sqlite".
	GetStoreBackend() string
	GetSessionFilePath() string
	GetRedisAddr() string
	GetRedisKey() string
	GetSQLitePath() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() string {
	return GetEnv("SESSION_STORE", "file")
}

func (Store) GetSessionFilePath() string {
	return GetEnv("SESSION_FILE", "./data/session.json")
}

func (Store) GetRedisAddr() string {
	return GetEnv("SESSION_REDIS_ADDR", "127.0.0.1:6379")
}

func (Store) GetRedisKey() string {
	return GetEnv("SESSION_REDIS_KEY", "auth:session")
}

func (Store) GetSQLitePath() string {
	return GetEnv("SESSION_SQLITE_PATH", "./data/session.db")
}
