package exchanges

import (
	"fmt"

	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/internal/service/binance"
	"CoinRoute/internal/service/kraken"
	"CoinRoute/internal/service/paper"
	"CoinRoute/internal/service/ratelimit"
	"CoinRoute/pkg/config"
	"CoinRoute/pkg/logger"
)

// defaultCaps are the documented public limits per venue, used when the
// account config leaves the caps at zero.
var defaultCaps = map[string]ratelimit.Caps{
	"binance": {PerSecond: 10, PerMinute: 1200, PerHour: 48000},
	"kraken":  {PerSecond: 1, PerMinute: 60, PerHour: 3000},
	"paper":   {PerSecond: 100, PerMinute: 5000, PerHour: 200000},
}

type factory func(acct config.ExchangeAccount, log *logger.Logger, clock domrepo.Clock) domrepo.ExchangeAdapter

var factories = map[string]factory{
	"binance": func(acct config.ExchangeAccount, log *logger.Logger, _ domrepo.Clock) domrepo.ExchangeAdapter {
		return binance.New(binance.Config{
			APIKey:    acct.APIKey,
			APISecret: acct.APISecret,
			Sandbox:   acct.Sandbox,
		}, log)
	},
	"kraken": func(acct config.ExchangeAccount, log *logger.Logger, _ domrepo.Clock) domrepo.ExchangeAdapter {
		return kraken.New(kraken.Config{
			APIKey:    acct.APIKey,
			APISecret: acct.APISecret,
		}, log)
	},
	"paper": func(_ config.ExchangeAccount, log *logger.Logger, clock domrepo.Clock) domrepo.ExchangeAdapter {
		return paper.New(log, clock)
	},
}

// Build constructs every adapter named in the config, failing fast on an
// exchange nobody has written an adapter for.
func Build(cfg *config.Config, log *logger.Logger, clock domrepo.Clock) (map[string]domrepo.ExchangeAdapter, error) {
	adapters := make(map[string]domrepo.ExchangeAdapter, len(cfg.Exchanges.Accounts))
	for name, acct := range cfg.Exchanges.Accounts {
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("no adapter for exchange %q (have: %v)", name, Known())
		}
		adapters[name] = f(acct, log, clock)
	}
	return adapters, nil
}

// Limiter constructs the shared rate limiter with per-exchange caps from
// config, falling back to the venue defaults.
func Limiter(cfg *config.Config, clock domrepo.Clock) *ratelimit.Limiter {
	opts := []ratelimit.Option{ratelimit.WithClock(clock.Now)}
	for name, acct := range cfg.Exchanges.Accounts {
		caps, ok := defaultCaps[name]
		if !ok {
			caps = ratelimit.Caps{PerSecond: 5, PerMinute: 100, PerHour: 2000}
		}
		if acct.PerSecond > 0 {
			caps.PerSecond = acct.PerSecond
		}
		if acct.PerMinute > 0 {
			caps.PerMinute = acct.PerMinute
		}
		if acct.PerHour > 0 {
			caps.PerHour = acct.PerHour
		}
		opts = append(opts, ratelimit.WithCaps(name, caps))
	}
	return ratelimit.New(opts...)
}

// Known lists the exchanges an adapter exists for.
func Known() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	return out
}
