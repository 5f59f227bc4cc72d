package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/config"
)

func newTestRelayService(t *testing.T, ttl time.Duration) (*RelayService, func(time.Duration)) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	cfg := &config.Config{StreamTTL: ttl}
	svc := NewRelayService(rdb, cfg, zerolog.Nop())
	return svc, mr.FastForward
}

func TestParseStreamType(t *testing.T) {
	if st, err := ParseStreamType("camera"); err != nil || st != StreamCamera {
		t.Errorf("camera: %v %v", st, err)
	}
	if st, err := ParseStreamType("screen"); err != nil || st != StreamScreen {
		t.Errorf("screen: %v %v", st, err)
	}
	if _, err := ParseStreamType("microphone"); err == nil {
		t.Error("unknown stream type accepted")
	}
}

func TestRelayPushPull(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRelayService(t, 30*time.Second)
	attemptID := uuid.New()

	frame := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	if err := svc.PushChunk(ctx, attemptID, StreamCamera, frame); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := svc.PullChunk(ctx, attemptID, StreamCamera)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("pulled %v, want %v", got, frame)
	}

	t.Run("StreamsAreIndependent", func(t *testing.T) {
		if _, err := svc.PullChunk(ctx, attemptID, StreamScreen); !errors.Is(err, ErrNotFound) {
			t.Fatalf("screen pull err = %v, want ErrNotFound", err)
		}
	})

	t.Run("LatestWins", func(t *testing.T) {
		next := []byte{0xFF, 0xD8, 0x09}
		if err := svc.PushChunk(ctx, attemptID, StreamCamera, next); err != nil {
			t.Fatalf("second push: %v", err)
		}
		got, err := svc.PullChunk(ctx, attemptID, StreamCamera)
		if err != nil {
			t.Fatalf("pull after overwrite: %v", err)
		}
		if !bytes.Equal(got, next) {
			t.Error("pull returned stale chunk after overwrite")
		}
	})
}

func TestRelayChunkExpires(t *testing.T) {
	ctx := context.Background()
	svc, fastForward := newTestRelayService(t, 30*time.Second)
	attemptID := uuid.New()

	if err := svc.PushChunk(ctx, attemptID, StreamScreen, []byte{0x01}); err != nil {
		t.Fatalf("push: %v", err)
	}

	fastForward(31 * time.Second)

	if _, err := svc.PullChunk(ctx, attemptID, StreamScreen); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pull after expiry err = %v, want ErrNotFound", err)
	}

	t.Run("RefreshExtendsWindow", func(t *testing.T) {
		if err := svc.PushChunk(ctx, attemptID, StreamScreen, []byte{0x02}); err != nil {
			t.Fatalf("repush: %v", err)
		}
		fastForward(20 * time.Second)
		if err := svc.PushChunk(ctx, attemptID, StreamScreen, []byte{0x03}); err != nil {
			t.Fatalf("refresh push: %v", err)
		}
		fastForward(20 * time.Second)
		// 40s since the first push, 20s since the refresh: still live.
		if _, err := svc.PullChunk(ctx, attemptID, StreamScreen); err != nil {
			t.Fatalf("pull after refresh: %v", err)
		}
	})
}

func TestRelayRejectsEmptyChunk(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRelayService(t, 30*time.Second)

	if err := svc.PushChunk(ctx, uuid.New(), StreamCamera, nil); err == nil {
		t.Fatal("empty chunk accepted")
	}
}
