package bus

import (
	"testing"
	"time"

	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Bar](10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	bar := model.Bar{
		Symbol: "btcusdt",
		ID:     1700000000,
		Open:   decimal.NewFromInt(100),
		Close:  decimal.NewFromInt(105),
	}
	fo.Publish(bar)

	for i, out := range []<-chan model.Bar{out1, out2} {
		select {
		case b := <-out:
			if b.Symbol != "btcusdt" || b.ID != 1700000000 {
				t.Errorf("out%d: unexpected bar %+v", i+1, b)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for bar", i+1)
		}
	}
}

func TestFanOut_PreservesPublishOrder(t *testing.T) {
	fo := New[model.Bar](100)
	out := fo.Subscribe()

	for i := int64(0); i < 50; i++ {
		fo.Publish(model.Bar{ID: i})
	}
	for i := int64(0); i < 50; i++ {
		b := <-out
		if b.ID != i {
			t.Fatalf("position %d: expected id %d, got %d", i, i, b.ID)
		}
	}
}

func TestFanOut_DropsForSlowConsumerOnly(t *testing.T) {
	fo := New[model.Bar](1)
	drops := 0
	fo.OnDrop = func(idx int) { drops++ }
	fo.Subscribe() // never drained

	fo.Publish(model.Bar{ID: 1})
	fo.Publish(model.Bar{ID: 2}) // buffer full, dropped

	if drops != 1 {
		t.Fatalf("expected 1 drop, got %d", drops)
	}
}

func TestFanOut_CloseIsIdempotent(t *testing.T) {
	fo := New[model.Bar](1)
	out := fo.Subscribe()

	fo.Close()
	fo.Close()

	if _, ok := <-out; ok {
		t.Fatal("subscriber channel should be closed")
	}
	// Publish after close must not panic.
	fo.Publish(model.Bar{ID: 3})
}
