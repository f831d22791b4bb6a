package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"AgentLink-Chain/internal/message"
)

func TestMemoryBusFIFO(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	defer b.Close()

	total := 5
	for i := 0; i < total; i++ {
		msg := message.New(message.TypeRandom, fmt.Sprintf("msg-%d", i), nil)
		if err := b.Put(ctx, msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < total; i++ {
		msg, err := b.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := fmt.Sprintf("msg-%d", i); msg.Content != want {
			t.Fatalf("expected %s, got %s", want, msg.Content)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty bus, got %d pending", b.Len())
	}
}

func TestMemoryBusBlockingGet(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	defer b.Close()

	got := make(chan message.Message, 1)
	go func() {
		msg, err := b.Get(ctx)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		got <- msg
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Put(ctx, message.New(message.TypeHello, "wake up", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case msg := <-got:
		if msg.Content != "wake up" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("消费者未被唤醒")
	}
}

func TestMemoryBusGetCancel(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Get(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("取消后 Get 未返回")
	}
}

func TestMemoryBusClose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	if err := b.Put(ctx, message.New(message.TypeRandom, "stale", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("重复关闭应当无害: %v", err)
	}

	if _, err := b.Get(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Put(ctx, message.New(message.TypeRandom, "late", nil)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryBusCloseWakesBlockedGet(t *testing.T) {
	b := NewMemoryBus()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Get(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("关闭后 Get 未返回")
	}
}

func TestMemoryBusConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	defer b.Close()

	producers := 8
	perProducer := 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				msg := message.New(message.TypeRandom, fmt.Sprintf("p%d-%d", p, i), nil)
				if err := b.Put(ctx, msg); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	if got := b.Len(); got != producers*perProducer {
		t.Fatalf("expected %d pending, got %d", producers*perProducer, got)
	}

	// 单个生产者的消息之间必须保持先后次序。
	lastSeen := make(map[string]int)
	for i := 0; i < producers*perProducer; i++ {
		msg, err := b.Get(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var p, seq int
		if _, err := fmt.Sscanf(msg.Content, "p%d-%d", &p, &seq); err != nil {
			t.Fatalf("unexpected content %q: %v", msg.Content, err)
		}
		key := fmt.Sprintf("p%d", p)
		if last, ok := lastSeen[key]; ok && seq <= last {
			t.Fatalf("producer %d 的消息被重排: %d after %d", p, seq, last)
		}
		lastSeen[key] = seq
	}
}
