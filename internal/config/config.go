package config

import "github.com/kelseyhightower/envconfig"

// Config 全部通过环境变量注入，前缀MPBOT
type Config struct {
	Listen string `envconfig:"LISTEN" default:":3000"`

	// 管理接口令牌，二选一：明文或bcrypt哈希
	AdminToken     string `envconfig:"ADMIN_TOKEN"`
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`

	// 存储后端：sqlite 或 file
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite"`
	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	StoreFile    string `envconfig:"STORE_FILE" default:"data/mpbot.json"`

	DefaultTheta     float64 `envconfig:"DEFAULT_THETA" default:"270"`
	DefaultPhi       float64 `envconfig:"DEFAULT_PHI" default:"90"`
	DefaultTolerance float64 `envconfig:"DEFAULT_TOLERANCE" default:"10"`

	MaxObservations    int  `envconfig:"MAX_OBSERVATIONS" default:"5000"`
	RecomputeOnObserve bool `envconfig:"RECOMPUTE_ON_OBSERVE" default:"false"`

	SheetSyncEnabled   bool   `envconfig:"SHEET_SYNC_ENABLED" default:"false"`
	SheetCredentials   string `envconfig:"SHEET_CREDENTIALS"`
	SheetSpreadsheetID string `envconfig:"SHEET_SPREADSHEET_ID"`
	SheetName          string `envconfig:"SHEET_NAME" default:"licenses"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("mpbot", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
