package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

// fakeClient is a pre-scripted connection: frames loaded into messages
// before the test runs, sent commands captured for inspection.
type fakeClient struct {
	sent     chan Command
	messages chan TimestampedMessage
	errors   chan error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sent:     make(chan Command, 16),
		messages: make(chan TimestampedMessage, 64),
		errors:   make(chan error, 1),
	}
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                      { return nil }
func (f *fakeClient) Send(ctx context.Context, cmd Command) error {
	f.sent <- cmd
	return nil
}
func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }
func (f *fakeClient) Errors() <-chan error                { return f.errors }
func (f *fakeClient) IsConnected() bool                   { return true }

func (f *fakeClient) push(t *testing.T, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	f.messages <- TimestampedMessage{Data: data, ReceivedAt: time.Now()}
}

func (f *fakeClient) nextSent(t *testing.T) Command {
	t.Helper()
	select {
	case cmd := <-f.sent:
		return cmd
	default:
		t.Fatal("no command sent")
		return Command{}
	}
}

func subscribedFrame(id, sid int64, channel string) map[string]any {
	return map[string]any{
		"id":   id,
		"type": TypeSubscribed,
		"msg":  map[string]any{"sid": sid, "channel": channel},
	}
}

func snapshotFrame(sid, seq int64, ticker string, yes, no [][]int) map[string]any {
	return map[string]any{
		"type": TypeOrderbookSnapshot,
		"sid":  sid,
		"seq":  seq,
		"msg":  map[string]any{"market_ticker": ticker, "yes": yes, "no": no},
	}
}

func deltaFrame(sid, seq int64, ticker, side string, price, delta int) map[string]any {
	return map[string]any{
		"type": TypeOrderbookDelta,
		"sid":  sid,
		"seq":  seq,
		"msg": map[string]any{
			"market_ticker": ticker,
			"price":         price,
			"delta":         delta,
			"side":          side,
		},
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubscribeQueuesEarlyFrames(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"INXD-23AUG28-B4500"})

	// data arrives before the confirmation and must not be lost
	fc.push(t, snapshotFrame(7, 1, "INXD-23AUG28-B4500", [][]int{{40, 100}}, [][]int{{55, 200}}))
	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))

	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cmd := fc.nextSent(t)
	if cmd.Cmd != "subscribe" {
		t.Errorf("sent cmd = %q, want subscribe", cmd.Cmd)
	}
	params := cmd.Params.(SubscribeParams)
	if len(params.Channels) != 1 || params.Channels[0] != ChannelOrderbookDelta {
		t.Errorf("channels = %v", params.Channels)
	}
	if len(params.MarketTickers) != 1 || params.MarketTickers[0] != "INXD-23AUG28-B4500" {
		t.Errorf("market tickers = %v", params.MarketTickers)
	}

	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Orderbook == nil || !ev.Orderbook.IsSnapshot() {
		t.Fatalf("expected queued snapshot, got %+v", ev)
	}
	snap := ev.Orderbook.Snapshot
	if snap.Ticker != "INXD-23AUG28-B4500" {
		t.Errorf("ticker = %q", snap.Ticker)
	}
	if len(snap.Yes) != 1 || snap.Yes[0].Price != 40 || snap.Yes[0].Quantity != 100 {
		t.Errorf("yes levels = %+v", snap.Yes)
	}
}

func TestSubscribeWithFills(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"INXD-23AUG28-B4500"}, WithFills())

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	fc.push(t, subscribedFrame(1, 8, ChannelFill))

	if err := sub.Subscribe(testCtx(t)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(sub.sids) != 2 || sub.sids[0] != 7 || sub.sids[1] != 8 {
		t.Errorf("sids = %v, want [7 8]", sub.sids)
	}
}

func TestSubscribeErrorResponse(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"INXD-23AUG28-B4500"})

	fc.push(t, map[string]any{
		"id":   int64(1),
		"type": TypeError,
		"msg":  map[string]any{"code": 6, "msg": "Already subscribed"},
	})

	err := sub.Subscribe(testCtx(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "Already subscribed") {
		t.Errorf("error = %q, want exchange message included", got)
	}
}

func TestNextValidatesSequence(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"INXD-23AUG28-B4500"})

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	fc.push(t, snapshotFrame(7, 1, "INXD-23AUG28-B4500", [][]int{{40, 100}}, nil))
	fc.push(t, deltaFrame(7, 2, "INXD-23AUG28-B4500", "yes", 40, 25))
	// gap: seq jumps to 5, the stream must be re-established
	fc.push(t, deltaFrame(7, 5, "INXD-23AUG28-B4500", "yes", 40, -10))
	// resubscribe flow: unsubscribe ack (cmd 2), subscribe ack (cmd 3),
	// then the fresh stream starting over at seq 1
	fc.push(t, map[string]any{"id": int64(2), "type": TypeUnsubscribed, "msg": map[string]any{}})
	fc.push(t, subscribedFrame(3, 9, ChannelOrderbookDelta))
	fc.push(t, snapshotFrame(9, 1, "INXD-23AUG28-B4500", [][]int{{41, 90}}, nil))

	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ev, err := sub.Next(ctx)
	if err != nil || ev.Orderbook == nil || !ev.Orderbook.IsSnapshot() {
		t.Fatalf("first event: %+v, %v", ev, err)
	}
	ev, err = sub.Next(ctx)
	if err != nil || ev.Orderbook == nil || ev.Orderbook.Delta == nil {
		t.Fatalf("second event: %+v, %v", ev, err)
	}
	if ev.Orderbook.Delta.Change != 25 {
		t.Errorf("delta change = %d, want 25", ev.Orderbook.Delta.Change)
	}

	// the gap frame is dropped; the next event is the fresh snapshot
	ev, err = sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next after gap failed: %v", err)
	}
	if ev.Orderbook == nil || !ev.Orderbook.IsSnapshot() {
		t.Fatalf("expected snapshot after resubscribe, got %+v", ev)
	}
	if ev.Orderbook.Snapshot.Yes[0].Price != 41 {
		t.Errorf("snapshot price = %d, want 41", ev.Orderbook.Snapshot.Yes[0].Price)
	}

	// resubscribe sent unsubscribe then subscribe
	fc.nextSent(t) // initial subscribe
	if cmd := fc.nextSent(t); cmd.Cmd != "unsubscribe" {
		t.Errorf("cmd = %q, want unsubscribe", cmd.Cmd)
	}
	if cmd := fc.nextSent(t); cmd.Cmd != "subscribe" {
		t.Errorf("cmd = %q, want subscribe", cmd.Cmd)
	}
}

func TestUpdateDiffsMarkets(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"MKT-A", "MKT-B"})

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	fc.push(t, map[string]any{"id": int64(2), "type": TypeSubscriptionUpdated, "msg": map[string]any{}})
	fc.push(t, map[string]any{"id": int64(3), "type": TypeSubscriptionUpdated, "msg": map[string]any{}})

	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Update(ctx, []model.MarketTicker{"MKT-B", "MKT-C"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fc.nextSent(t) // subscribe
	del := fc.nextSent(t)
	if del.Cmd != "update_subscription" {
		t.Fatalf("cmd = %q", del.Cmd)
	}
	delParams := del.Params.(UpdateSubscriptionParams)
	if delParams.Action != ActionDeleteMarkets || len(delParams.MarketTickers) != 1 || delParams.MarketTickers[0] != "MKT-A" {
		t.Errorf("delete params = %+v", delParams)
	}
	addParams := fc.nextSent(t).Params.(UpdateSubscriptionParams)
	if addParams.Action != ActionAddMarkets || len(addParams.MarketTickers) != 1 || addParams.MarketTickers[0] != "MKT-C" {
		t.Errorf("add params = %+v", addParams)
	}
	if delParams.SIDs[0] != 7 {
		t.Errorf("update sid = %d, want 7", delParams.SIDs[0])
	}

	got := sub.Tickers()
	if len(got) != 2 || got[0] != "MKT-B" || got[1] != "MKT-C" {
		t.Errorf("tickers = %v, want [MKT-B MKT-C]", got)
	}
}

func TestUpdateNoChangesSendsNothing(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"MKT-A"})

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Update(ctx, []model.MarketTicker{"MKT-A"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	fc.nextSent(t) // subscribe
	select {
	case cmd := <-fc.sent:
		t.Errorf("unexpected command %q", cmd.Cmd)
	default:
	}
}

func TestNextDecodesFill(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"MKT-A"}, WithFills())

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	fc.push(t, subscribedFrame(1, 8, ChannelFill))
	fc.push(t, map[string]any{
		"type": TypeFill,
		"sid":  int64(8),
		"msg": map[string]any{
			"fill_id":       "a3bb189e-8bf9-3888-9912-ace4e6543002",
			"order_id":      "b4cc289e-8bf9-3888-9912-ace4e6543003",
			"trade_id":      "t-1",
			"market_ticker": "MKT-A",
			"side":          "no",
			"action":        "buy",
			"yes_price":     35,
			"no_price":      65,
			"count":         10,
			"is_taker":      true,
			"ts":            int64(1689120000),
		},
	})

	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Fill == nil {
		t.Fatalf("expected fill event, got %+v", ev)
	}
	if ev.Fill.Side != model.No || ev.Fill.Price() != 65 {
		t.Errorf("fill side/price = %v/%d", ev.Fill.Side, ev.Fill.Price())
	}
	if ev.Fill.Count != 10 || !ev.Fill.IsTaker {
		t.Errorf("fill = %+v", ev.Fill)
	}
	if got := ev.Fill.CreatedTime.Unix(); got != 1689120000 {
		t.Errorf("created time = %d", got)
	}
}

func TestNextSurfacesConnectionError(t *testing.T) {
	fc := newFakeClient()
	sub := NewSubscription(fc, []model.MarketTicker{"MKT-A"})

	fc.push(t, subscribedFrame(1, 7, ChannelOrderbookDelta))
	ctx := testCtx(t)
	if err := sub.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	fc.errors <- ErrStaleConnection
	_, err := sub.Next(ctx)
	if !errors.Is(err, ErrStaleConnection) {
		t.Errorf("err = %v, want ErrStaleConnection", err)
	}
}
