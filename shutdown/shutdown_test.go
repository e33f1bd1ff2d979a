package shutdown

import (
	"context"
	"testing"
	"time"
)

func TestContextCancel(t *testing.T) {
	ctx, cancel := Context(context.Background())
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled")
	}
}

func TestContextFollowsParent(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := Context(parent)
	defer cancel()

	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not follow parent")
	}
}
