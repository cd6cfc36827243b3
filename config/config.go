package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Config es la configuración completa de swingbot.
type Config struct {
	Trade    TradeConfig    `yaml:"trade"`
	Data     DataConfig     `yaml:"data"`
	API      APIConfig      `yaml:"api"`
	Model    ModelConfig    `yaml:"model"`
	Engine   EngineConfig   `yaml:"engine"`
	Storage  StorageConfig  `yaml:"storage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// TradeConfig define las reglas del trade simulado y el umbral de señal.
type TradeConfig struct {
	TargetPct       float64 `yaml:"target_pct"` // fracción: 0.03 = 3%
	StopPct         float64 `yaml:"stop_pct"`
	HoldDays        int     `yaml:"hold_days"`
	SignalThreshold float64 `yaml:"signal_threshold"` // BUY si prob >= threshold
}

// DataConfig define el universo, el rango histórico y la partición walk-forward.
type DataConfig struct {
	StartDate   string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate     string   `yaml:"end_date"`
	TrainEnd    string   `yaml:"train_end"` // último día (inclusive) del set de entrenamiento
	TestEnd     string   `yaml:"test_end"`
	Symbols     []string `yaml:"symbols"`
	FeatureCols []string `yaml:"feature_cols"`
}

// APIConfig contiene el base URL del proveedor de precios.
type APIConfig struct {
	YahooBase         string  `yaml:"yahoo_base"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	FetchWorkers      int     `yaml:"fetch_workers"`
}

// ModelConfig controla el entrenamiento y dónde se guarda el modelo.
type ModelConfig struct {
	Path         string  `yaml:"path"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	L2           float64 `yaml:"l2"`
}

// EngineConfig controla el worker pool del backtest.
type EngineConfig struct {
	Workers int `yaml:"workers"` // 0 = runtime.NumCPU()
}

// StorageConfig controla dónde se persisten los runs de backtest.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, postgres://..., o "" / "-" para desactivar
}

// ScheduleConfig define cuándo corre el escaneo de señales (cron con segundos).
type ScheduleConfig struct {
	SignalsCron string `yaml:"signals_cron"`
}

// ServerConfig controla la API HTTP del dashboard.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	// los defaults van primero: un 0 explícito en YAML o env se respeta
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// TradeParams devuelve las reglas del trade como tipo de dominio.
func (c *Config) TradeParams() domain.TradeParams {
	return domain.TradeParams{
		TargetPct: c.Trade.TargetPct,
		StopPct:   c.Trade.StopPct,
		HoldDays:  c.Trade.HoldDays,
	}
}

// Range devuelve el rango histórico a descargar.
func (c *Config) Range() (from, to time.Time, err error) {
	if from, err = parseDate("start_date", c.Data.StartDate); err != nil {
		return
	}
	to, err = parseDate("end_date", c.Data.EndDate)
	return
}

// Window devuelve la partición train/test.
func (c *Config) Window() (domain.Window, error) {
	trainEnd, err := parseDate("train_end", c.Data.TrainEnd)
	if err != nil {
		return domain.Window{}, err
	}
	testEnd, err := parseDate("test_end", c.Data.TestEnd)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{TrainEnd: trainEnd, TestEnd: testEnd}, nil
}

// StorageDisabled indica si los runs no se persisten ("" o "-").
func (c *Config) StorageDisabled() bool {
	return c.Storage.DSN == "" || c.Storage.DSN == "-"
}

// Validate rechaza configuraciones con las que el pipeline no puede correr.
func (c *Config) Validate() error {
	var errs []error
	if err := c.TradeParams().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("trade: %w", err))
	}
	if c.Trade.SignalThreshold < 0 || c.Trade.SignalThreshold > 1 {
		errs = append(errs, fmt.Errorf("trade.signal_threshold must be in [0,1], got %v", c.Trade.SignalThreshold))
	}
	if from, to, err := c.Range(); err != nil {
		errs = append(errs, err)
	} else if !from.Before(to) {
		errs = append(errs, fmt.Errorf("data.start_date %s must be before end_date %s", c.Data.StartDate, c.Data.EndDate))
	}
	if w, err := c.Window(); err != nil {
		errs = append(errs, err)
	} else if !w.TrainEnd.Before(w.TestEnd) {
		errs = append(errs, fmt.Errorf("data.train_end %s must be before test_end %s", c.Data.TrainEnd, c.Data.TestEnd))
	}
	if len(c.Data.Symbols) == 0 {
		errs = append(errs, errors.New("data.symbols is empty"))
	}
	if dup := firstDuplicate(c.Data.Symbols); dup != "" {
		errs = append(errs, fmt.Errorf("data.symbols lists %q more than once", dup))
	}
	if len(c.Data.FeatureCols) == 0 {
		errs = append(errs, errors.New("data.feature_cols is empty"))
	}
	if dup := firstDuplicate(c.Data.FeatureCols); dup != "" {
		errs = append(errs, fmt.Errorf("data.feature_cols lists %q more than once", dup))
	}
	if c.API.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_second must be positive, got %v", c.API.RequestsPerSecond))
	}
	if c.API.FetchWorkers < 1 {
		errs = append(errs, fmt.Errorf("api.fetch_workers must be >= 1, got %d", c.API.FetchWorkers))
	}
	if c.Model.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("model.learning_rate must be positive, got %v", c.Model.LearningRate))
	}
	if c.Model.Epochs < 1 {
		errs = append(errs, fmt.Errorf("model.epochs must be >= 1, got %d", c.Model.Epochs))
	}
	if c.Model.L2 < 0 {
		errs = append(errs, fmt.Errorf("model.l2 must be >= 0, got %v", c.Model.L2))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func firstDuplicate(values []string) string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v
		}
		seen[v] = true
	}
	return ""
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("data.%s: %w", field, err)
	}
	return t, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	// SWINGBOT_DSN= (vacío) desactiva el storage igual que "-"
	if v, ok := os.LookupEnv("SWINGBOT_DSN"); ok {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SWINGBOT_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.API.YahooBase = v
	}
	if v := os.Getenv("SWINGBOT_SYMBOLS"); v != "" {
		cfg.Data.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Data.Symbols = append(cfg.Data.Symbols, s)
			}
		}
	}
	if v := os.Getenv("SWINGBOT_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SWINGBOT_THRESHOLD: %w", err)
		}
		cfg.Trade.SignalThreshold = th
	}
	return nil
}

// Defaults devuelve la configuración por defecto. Load decodifica el YAML
// encima, así que solo las keys ausentes conservan estos valores.
func Defaults() Config {
	return Config{
		Trade: TradeConfig{
			TargetPct:       0.03,
			StopPct:         0.02,
			HoldDays:        5,
			SignalThreshold: 0.65,
		},
		Data: DataConfig{
			StartDate:   "2019-01-01",
			EndDate:     "2024-12-31",
			TrainEnd:    "2022-12-31",
			TestEnd:     "2023-12-31",
			Symbols:     []string{"RELIANCE.NS", "HDFCBANK.NS", "ICICIBANK.NS", "INFY.NS", "TCS.NS"},
			FeatureCols: []string{"close_ema20_ratio", "ema20_ema50_diff", "atr_pct", "rsi", "vol_ratio"},
		},
		API: APIConfig{
			YahooBase:         "https://query1.finance.yahoo.com",
			RequestsPerSecond: 2,
			FetchWorkers:      4,
		},
		Model: ModelConfig{
			Path:         "model.json",
			LearningRate: 0.05,
			Epochs:       300,
			L2:           0.001,
		},
		Storage:  StorageConfig{DSN: "swingbot.db"},
		Schedule: ScheduleConfig{SignalsCron: "0 30 16 * * 1-5"}, // después del cierre NSE
		Server:   ServerConfig{Addr: "127.0.0.1:5000"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}
