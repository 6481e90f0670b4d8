package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

// tradeRow is a row for the trades table.
type tradeRow struct {
	TradeID     string
	Ticker      string
	TakerSide   string
	YesPrice    int
	NoPrice     int
	Count       int
	CreatedTime time.Time
}

// fillRow is a row for the fills table.
type fillRow struct {
	FillID      string // UUID
	OrderID     string // UUID
	Ticker      string
	Side        string
	Action      string
	YesPrice    int
	NoPrice     int
	Count       int
	IsTaker     bool
	CreatedTime time.Time
}

const insertTradeSQL = `
	INSERT INTO trades (trade_id, ticker, taker_side, yes_price, no_price, count, created_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (trade_id) DO NOTHING
`

const insertFillSQL = `
	INSERT INTO fills (fill_id, order_id, ticker, side, action, yes_price, no_price, count, is_taker, created_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (fill_id) DO NOTHING
`

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id     TEXT PRIMARY KEY,
		ticker       TEXT NOT NULL,
		taker_side   TEXT NOT NULL,
		yes_price    INT NOT NULL,
		no_price     INT NOT NULL,
		count        INT NOT NULL,
		created_time TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trades_ticker_time_idx ON trades (ticker, created_time)`,
	`CREATE TABLE IF NOT EXISTS fills (
		fill_id      UUID PRIMARY KEY,
		order_id     UUID NOT NULL,
		ticker       TEXT NOT NULL,
		side         TEXT NOT NULL,
		action       TEXT NOT NULL,
		yes_price    INT NOT NULL,
		no_price     INT NOT NULL,
		count        INT NOT NULL,
		is_taker     BOOLEAN NOT NULL,
		created_time TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS fills_ticker_time_idx ON fills (ticker, created_time)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func (a *Archiver) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := a.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure archive schema: %w", err)
		}
	}
	return nil
}

func transformTrade(t model.Trade) tradeRow {
	return tradeRow{
		TradeID:     t.TradeID,
		Ticker:      string(t.Ticker),
		TakerSide:   string(t.TakerSide),
		YesPrice:    int(t.YesPrice),
		NoPrice:     int(t.NoPrice),
		Count:       int(t.Count),
		CreatedTime: t.CreatedTime,
	}
}

func transformFill(f model.Fill) fillRow {
	return fillRow{
		FillID:      f.FillID.String(),
		OrderID:     f.OrderID.String(),
		Ticker:      string(f.Ticker),
		Side:        string(f.Side),
		Action:      string(f.Action),
		YesPrice:    int(f.YesPrice),
		NoPrice:     int(f.NoPrice),
		Count:       int(f.Count),
		IsTaker:     f.IsTaker,
		CreatedTime: f.CreatedTime,
	}
}
