package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine     EngineConfig  `yaml:"engine"`
	Arb        ArbConfig     `yaml:"arb"`
	Follow     FollowConfig  `yaml:"follow"`
	Orders     OrdersConfig  `yaml:"orders"`
	Kalshi     KalshiConfig  `yaml:"kalshi"`
	Polymarket PolyConfig    `yaml:"polymarket"`
	Storage    StorageConfig `yaml:"storage"`
	Log        LogConfig     `yaml:"log"`
}

// EngineConfig controla el loop principal y el gating transversal.
type EngineConfig struct {
	PollIntervalMillis     int     `yaml:"poll_interval_millis"`
	Ticker                 string  `yaml:"ticker"`    // pinned; vacío = auto-discovery
	Series                 string  `yaml:"series"`    // serie de Kalshi (p.ej. KXBTCD)
	PolySlug               string  `yaml:"poly_slug"` // slug de la serie en Polymarket
	LockPath               string  `yaml:"lock_path"`
	HaltOnLowBalance       *bool   `yaml:"halt_on_low_balance"` // default true
	MinKalshiBalanceCents  int64   `yaml:"min_kalshi_balance_cents"`
	MinPolyBalanceUSDC     float64 `yaml:"min_poly_balance_usdc"`
	BalancePrefetchSeconds int     `yaml:"balance_prefetch_seconds"`
}

// ArbConfig parametriza la estrategia de arbitraje cross-venue.
// La banda es semiabierta: low incluido, high excluido.
type ArbConfig struct {
	BandLow      float64 `yaml:"band_low"`
	BandHigh     float64 `yaml:"band_high"`
	KalshiCount  int     `yaml:"kalshi_count"`
	PolyShares   float64 `yaml:"poly_shares"`
	RetryDelayMS int     `yaml:"retry_delay_ms"`
	RetryBuffer  float64 `yaml:"retry_buffer"` // sobre el best ask al re-preciar
}

// FollowConfig parametriza la estrategia follow-confidence.
type FollowConfig struct {
	BuyMin             float64 `yaml:"buy_min"`    // guard "este lado no está ya barato"
	BuyMax             float64 `yaml:"buy_max"`    // precio máximo operable del venue
	SellBelow          float64 `yaml:"sell_below"`
	CertBuffer         float64 `yaml:"cert_buffer"` // rebaja del threshold con Kalshi en 100
	Shares             float64 `yaml:"shares"`
	BalanceSizingAfter int     `yaml:"balance_sizing_after_seconds"` // offset dentro del cuarto de hora
	SellRetries        int     `yaml:"sell_retries"`
	SellRetryDelayMS   int     `yaml:"sell_retry_delay_ms"`
	SafetyMargin       float64 `yaml:"safety_margin"` // shares restadas al estimar sin balance
}

// OrdersConfig controla el coordinador de órdenes.
type OrdersConfig struct {
	BuyMarkup        float64 `yaml:"buy_markup"` // markup acotado sobre el ask observado
	MinNotionalUSDC  float64 `yaml:"min_notional_usdc"`
	FulfillCheckMS   int     `yaml:"fulfill_check_ms"`
	DryRunKalshi     bool    `yaml:"dry_run_kalshi"`
	DryRunPolymarket bool    `yaml:"dry_run_polymarket"`
}

// KalshiConfig contiene el endpoint y credenciales de Kalshi.
type KalshiConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"` // solo por env: KALSHI_API_KEY
}

// PolyConfig contiene los endpoints y credenciales de Polymarket.
type PolyConfig struct {
	ClobBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	APIKey    string `yaml:"-"` // solo por env: POLY_API_KEY
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	HoldingsPath string `yaml:"holdings_path"` // JSON settlement→token→qty
	DSN          string `yaml:"dsn"`           // SQLite del journal, o ":memory:"
	SlotLogDir   string `yaml:"slot_log_dir"`  // un log plano por slot
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las credenciales vienen siempre del entorno, nunca del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMillis) * time.Millisecond
}

// HaltOnLowBalance aplica el default (true) si el YAML no lo especifica.
func (c *Config) HaltOnLowBalance() bool {
	if c.Engine.HaltOnLowBalance == nil {
		return true
	}
	return *c.Engine.HaltOnLowBalance
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KALSHI_API_KEY"); v != "" {
		cfg.Kalshi.APIKey = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.Polymarket.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalMillis <= 0 {
		cfg.Engine.PollIntervalMillis = 2000
	}
	if cfg.Engine.Series == "" {
		cfg.Engine.Series = "KXBTCD"
	}
	if cfg.Engine.PolySlug == "" {
		cfg.Engine.PolySlug = "bitcoin-up-or-down"
	}
	if cfg.Engine.LockPath == "" {
		cfg.Engine.LockPath = "updownbot.lock"
	}
	if cfg.Engine.BalancePrefetchSeconds <= 0 {
		cfg.Engine.BalancePrefetchSeconds = 30
	}
	if cfg.Arb.BandLow <= 0 {
		cfg.Arb.BandLow = 0.75
	}
	if cfg.Arb.BandHigh <= 0 {
		cfg.Arb.BandHigh = 0.92
	}
	if cfg.Arb.KalshiCount <= 0 {
		cfg.Arb.KalshiCount = 10
	}
	if cfg.Arb.PolyShares <= 0 {
		cfg.Arb.PolyShares = 10
	}
	if cfg.Arb.RetryDelayMS <= 0 {
		cfg.Arb.RetryDelayMS = 500
	}
	if cfg.Arb.RetryBuffer <= 0 {
		cfg.Arb.RetryBuffer = 0.02
	}
	if cfg.Follow.BuyMin <= 0 {
		cfg.Follow.BuyMin = 0.80
	}
	if cfg.Follow.BuyMax <= 0 {
		cfg.Follow.BuyMax = 0.97
	}
	if cfg.Follow.SellBelow <= 0 {
		cfg.Follow.SellBelow = 0.77
	}
	if cfg.Follow.CertBuffer <= 0 {
		cfg.Follow.CertBuffer = 0.15
	}
	if cfg.Follow.Shares <= 0 {
		cfg.Follow.Shares = 20
	}
	if cfg.Follow.BalanceSizingAfter <= 0 {
		cfg.Follow.BalanceSizingAfter = 600
	}
	if cfg.Follow.SellRetries <= 0 {
		cfg.Follow.SellRetries = 3
	}
	if cfg.Follow.SellRetryDelayMS <= 0 {
		cfg.Follow.SellRetryDelayMS = 1000
	}
	if cfg.Follow.SafetyMargin <= 0 {
		cfg.Follow.SafetyMargin = 1
	}
	if cfg.Orders.BuyMarkup <= 0 {
		cfg.Orders.BuyMarkup = 0.02
	}
	if cfg.Orders.MinNotionalUSDC <= 0 {
		cfg.Orders.MinNotionalUSDC = 1.0
	}
	if cfg.Orders.FulfillCheckMS <= 0 {
		cfg.Orders.FulfillCheckMS = 3000
	}
	if cfg.Kalshi.BaseURL == "" {
		cfg.Kalshi.BaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	}
	if cfg.Polymarket.ClobBase == "" {
		cfg.Polymarket.ClobBase = "https://clob.polymarket.com"
	}
	if cfg.Polymarket.GammaBase == "" {
		cfg.Polymarket.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.HoldingsPath == "" {
		cfg.Storage.HoldingsPath = "holdings.json"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "updownbot.db"
	}
	if cfg.Storage.SlotLogDir == "" {
		cfg.Storage.SlotLogDir = "logs"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
