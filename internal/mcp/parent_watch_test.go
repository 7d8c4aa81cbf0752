package mcp_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"demogen/internal/logging"
	mcpserver "demogen/internal/mcp"
)

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mcpserver.WatchParent(ctx, logging.Discard(), cancel)
	cancel()

	// The goroutine must neither panic nor block after cancel.
	time.Sleep(50 * time.Millisecond)
}

func TestWatchParent_LeavesParentAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mcpserver.WatchParent(ctx, logging.Discard(), cancel)
	time.Sleep(50 * time.Millisecond)
	if ctx.Err() != nil {
		t.Fatal("context canceled while the parent is still alive")
	}

	// A concurrent reader, standing in for the stdio transport, sees every byte.
	pr, pw := io.Pipe()
	defer pr.Close()
	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	go func() {
		pw.Write([]byte(msg + "\n"))
		pw.Close()
	}()
	scanner := bufio.NewScanner(pr)
	if !scanner.Scan() {
		t.Fatalf("reader got no data; err=%v", scanner.Err())
	}
	if got := scanner.Text(); got != msg {
		t.Fatalf("reader got %q, want %q", got, msg)
	}
}
