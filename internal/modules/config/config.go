package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"tier_bot/internal/helper"
	"tier_bot/internal/models"
	"tier_bot/internal/position"
	"tier_bot/internal/risk"
	"tier_bot/internal/strategy"
	"tier_bot/pkg/logger"
	"tier_bot/pkg/tracing"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
)

// Config ...
type Config struct {
	Telegram struct {
		Token      string  `yaml:"token"`
		AllowedIDs []int64 `yaml:"allowed_ids"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`
	Log     logger.Config  `yaml:"log"`
	Tracing tracing.Config `yaml:"tracing"`

	Exchange Exchange `yaml:"exchange"`
	Engine   Engine   `yaml:"engine"`
	Signal   Signal   `yaml:"signal"`
	Exits    Exits    `yaml:"exits"`
	Cooldown Cooldown `yaml:"cooldown"`

	Tiers []models.TierSettings `yaml:"tiers"`
	// Ручные ограничения инструментов, иначе берутся с биржи
	Instruments []models.Instrument `yaml:"instruments"`
}

type Exchange struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	WSURL       string        `yaml:"ws_url"`
	WSEnabled   bool          `yaml:"ws_enabled"`
	PriceMaxAge time.Duration `yaml:"price_max_age"`
	Live        bool          `yaml:"live"`
	Simulated   bool          `yaml:"simulated"` // demo trading OKX
	APIKey      string        `yaml:"api_key"`
	APISecret   string        `yaml:"api_secret"`
	Passphrase  string        `yaml:"passphrase"`
	TdMode      string        `yaml:"td_mode"`
	PosMode     string        `yaml:"pos_mode"`
	Leverage    int           `yaml:"leverage"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Engine struct {
	Symbols         []string      `yaml:"symbols"`
	Timeframe       string        `yaml:"timeframe"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	History         int           `yaml:"history"` // сколько свечей тянуть для RSI
	Parallelism     int           `yaml:"parallelism"`
	SummaryInterval time.Duration `yaml:"summary_interval"`
	InitialCapital  float64       `yaml:"initial_capital"`
	FeeRate         float64       `yaml:"fee_rate"` // на одну сторону
	FaultDelay      time.Duration `yaml:"fault_delay"`
}

type Signal struct {
	Period        int     `yaml:"rsi_period"`
	BuyThreshold  float64 `yaml:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold"`
	Hysteresis    float64 `yaml:"hysteresis"`
}

type Exits struct {
	TakeProfitPct   float64       `yaml:"take_profit_pct"`
	StopLossPct     float64       `yaml:"stop_loss_pct"`
	PartialPct      float64       `yaml:"partial_pct"`
	Breakeven       bool          `yaml:"breakeven"`
	BETriggerPct    float64       `yaml:"be_trigger_pct"`
	BEOffsetPct     float64       `yaml:"be_offset_pct"`
	Trail           bool          `yaml:"trail"`
	TrailTriggerPct float64       `yaml:"trail_trigger_pct"`
	TrailStepPct    float64       `yaml:"trail_step_pct"`
	Timeout         time.Duration `yaml:"timeout"`
}

type Cooldown struct {
	Signal    time.Duration `yaml:"signal"`
	Loss      time.Duration `yaml:"loss"`
	LossScope string        `yaml:"loss_scope"` // key | global
}

// Default значения по умолчанию.
func Default() Config {
	cfg := Config{
		Exchange: Exchange{
			Name:        "okx",
			PriceMaxAge: 10 * time.Second,
			TdMode:      "cross",
			PosMode:     "net",
			Leverage:    5,
			Timeout:     10 * time.Second,
		},
		Engine: Engine{
			Symbols:         []string{"BTC/USDT:USDT"},
			Timeframe:       "1m",
			PollInterval:    5 * time.Second,
			History:         200,
			Parallelism:     1,
			SummaryInterval: time.Hour,
			InitialCapital:  60,
			FeeRate:         0.0005,
			FaultDelay:      2 * time.Second,
		},
		Signal: Signal{
			Period:        14,
			BuyThreshold:  30,
			SellThreshold: 70,
			Hysteresis:    3,
		},
		Exits: Exits{
			TakeProfitPct:   1.5,
			StopLossPct:     1.0,
			PartialPct:      40,
			Breakeven:       true,
			BETriggerPct:    0.60,
			BEOffsetPct:     0.05,
			Trail:           true,
			TrailTriggerPct: 1.00,
			TrailStepPct:    0.25,
			Timeout:         25 * time.Minute,
		},
		Cooldown: Cooldown{
			Signal:    300 * time.Second,
			Loss:      900 * time.Second,
			LossScope: string(risk.LossScopeKey),
		},
		Tiers: models.DefaultTiers(),
	}
	cfg.Service.AdminPort = 8080
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = defaultConfigFile
	}
	return Load(filepath.Join(configDir, name))
}

// Load читает yaml поверх дефолтов, затем env. Отсутствующий файл не ошибка.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	// в env длительности задаются числом секунд/минут
	dur := func(key string, unit time.Duration, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetFloat64(key) * float64(unit))
		}
	}

	str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	if v.IsSet("TELEGRAM_ALLOWED_IDS") {
		ids, err := parseIDs(v.GetString("TELEGRAM_ALLOWED_IDS"))
		if err != nil {
			return err
		}
		cfg.Telegram.AllowedIDs = ids
	}
	str("DATABASE_DSN", &cfg.DB)
	str("LOG_LEVEL", &cfg.Log.Level)

	flag("LIVE", &cfg.Exchange.Live)
	str("API_KEY", &cfg.Exchange.APIKey)
	str("API_SECRET", &cfg.Exchange.APISecret)
	str("API_PASSPHRASE", &cfg.Exchange.Passphrase)

	if v.IsSet("SYMBOLS") {
		cfg.Engine.Symbols = splitList(v.GetString("SYMBOLS"))
	}
	str("TIMEFRAME", &cfg.Engine.Timeframe)
	num("FEE_RATE", &cfg.Engine.FeeRate)
	dur("POLL_SEC", time.Second, &cfg.Engine.PollInterval)
	num("INITIAL_CAPITAL", &cfg.Engine.InitialCapital)

	integer("RSI_PERIOD", &cfg.Signal.Period)
	num("RSI_BUY_THRESHOLD", &cfg.Signal.BuyThreshold)
	num("RSI_SELL_THRESHOLD", &cfg.Signal.SellThreshold)
	num("RSI_HYSTERESIS", &cfg.Signal.Hysteresis)

	num("TAKE_PROFIT_PCT", &cfg.Exits.TakeProfitPct)
	num("STOP_LOSS_PCT", &cfg.Exits.StopLossPct)
	num("TP_PARTIAL_PCT", &cfg.Exits.PartialPct)
	flag("ENABLE_BREAKEVEN", &cfg.Exits.Breakeven)
	num("BE_TRIGGER_PCT", &cfg.Exits.BETriggerPct)
	num("BE_OFFSET_PCT", &cfg.Exits.BEOffsetPct)
	flag("ENABLE_TRAIL", &cfg.Exits.Trail)
	num("TRAIL_TRIGGER_PCT", &cfg.Exits.TrailTriggerPct)
	num("TRAIL_STEP_PCT", &cfg.Exits.TrailStepPct)
	dur("TIMEOUT_MIN", time.Minute, &cfg.Exits.Timeout)

	dur("SIGNAL_COOLDOWN", time.Second, &cfg.Cooldown.Signal)
	dur("LOSS_COOLDOWN_SEC", time.Second, &cfg.Cooldown.Loss)
	str("LOSS_COOLDOWN_SCOPE", &cfg.Cooldown.LossScope)

	for i := range cfg.Tiers {
		suffix := strings.ToUpper(string(cfg.Tiers[i].Name))
		num("CAPITAL_"+suffix, &cfg.Tiers[i].Capital)
		integer("LOT_SIZE_"+suffix, &cfg.Tiers[i].Lots)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_IDS: bad chat id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (c *Config) Validate() error {
	if err := c.Strategy().Validate(); err != nil {
		return err
	}
	if helper.TimeframeDuration(c.Engine.Timeframe) == 0 {
		return fmt.Errorf("engine.timeframe %q is not supported", c.Engine.Timeframe)
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols is empty")
	}
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be > 0, got %s", c.Engine.PollInterval)
	}
	if c.Engine.History <= c.Signal.Period {
		return fmt.Errorf("engine.history must be > rsi_period (%d), got %d", c.Signal.Period, c.Engine.History)
	}
	if c.Exits.PartialPct < 0 || c.Exits.PartialPct > 100 {
		return fmt.Errorf("exits.partial_pct must be in [0,100], got %.2f", c.Exits.PartialPct)
	}
	for name, v := range map[string]float64{
		"take_profit_pct":   c.Exits.TakeProfitPct,
		"stop_loss_pct":     c.Exits.StopLossPct,
		"be_trigger_pct":    c.Exits.BETriggerPct,
		"be_offset_pct":     c.Exits.BEOffsetPct,
		"trail_trigger_pct": c.Exits.TrailTriggerPct,
		"trail_step_pct":    c.Exits.TrailStepPct,
	} {
		if v < 0 {
			return fmt.Errorf("exits.%s must be >= 0, got %.2f", name, v)
		}
	}
	if c.Exits.Timeout < 0 {
		return fmt.Errorf("exits.timeout must be >= 0, got %s", c.Exits.Timeout)
	}
	if c.Engine.FeeRate < 0 {
		return fmt.Errorf("engine.fee_rate must be >= 0, got %f", c.Engine.FeeRate)
	}
	if _, err := risk.ParseLossScope(c.Cooldown.LossScope); err != nil {
		return err
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("tiers is empty")
	}

	seen := make(map[models.Tier]bool, len(c.Tiers))
	for i := range c.Tiers {
		ts := &c.Tiers[i]
		name, ok := models.ParseTier(string(ts.Name))
		if !ok {
			return fmt.Errorf("unknown tier %q", ts.Name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate tier %q", name)
		}
		seen[name] = true
		ts.Name = name

		if ts.Lots < 1 {
			return fmt.Errorf("tier %s: lots must be >= 1, got %d", name, ts.Lots)
		}
		// capital 0 выключает уровень: позиции по нему не открываются
		if ts.Capital < 0 {
			return fmt.Errorf("tier %s: capital must be >= 0, got %.2f", name, ts.Capital)
		}
		if ts.TakeProfitPct < 0 || ts.StopLossPct < 0 {
			return fmt.Errorf("tier %s: take_profit_pct/stop_loss_pct must be >= 0", name)
		}
		if ts.Capital > models.MaxTierCapital {
			ts.Capital = models.MaxTierCapital
		}
	}
	return nil
}

func (c *Config) Strategy() strategy.Config {
	return strategy.Config{
		Period:        c.Signal.Period,
		BuyThreshold:  c.Signal.BuyThreshold,
		SellThreshold: c.Signal.SellThreshold,
		Hysteresis:    c.Signal.Hysteresis,
	}
}

func (c *Config) Rules() position.Rules {
	return position.Rules{
		PartialPct:       c.Exits.PartialPct,
		BreakevenEnabled: c.Exits.Breakeven,
		BETriggerPct:     c.Exits.BETriggerPct,
		BEOffsetPct:      c.Exits.BEOffsetPct,
		TrailEnabled:     c.Exits.Trail,
		TrailTriggerPct:  c.Exits.TrailTriggerPct,
		TrailStepPct:     c.Exits.TrailStepPct,
		Timeout:          c.Exits.Timeout,
		FeeRate:          c.Engine.FeeRate,
	}
}

// Brackets TP/SL для tier'а: собственные значения tier'а, иначе глобальные.
func (c *Config) Brackets(ts models.TierSettings) (tpPct, slPct float64) {
	tpPct, slPct = c.Exits.TakeProfitPct, c.Exits.StopLossPct
	if ts.TakeProfitPct > 0 {
		tpPct = ts.TakeProfitPct
	}
	if ts.StopLossPct > 0 {
		slPct = ts.StopLossPct
	}
	return tpPct, slPct
}

func (c *Config) LossScope() risk.LossScope {
	scope, _ := risk.ParseLossScope(c.Cooldown.LossScope)
	return scope
}

// InstrumentOverride ручные ограничения для символа, если заданы.
func (c *Config) InstrumentOverride(symbol string) (models.Instrument, bool) {
	for _, inst := range c.Instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return models.Instrument{}, false
}
