package store

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := NewDatabase(1000)

	for i := 0; i < 100; i++ {
		src.Set(fmt.Sprintf("key%d", i), []byte(fmt.Sprintf("val%d", i)))
	}
	src.Set("binary", []byte("va\x00ue"))
	src.HSet("user", "name", []byte("alice"))
	src.HSet("user", "age", []byte("30"))
	src.Expire("key42", 3600)

	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	dst := NewDatabase(1000)
	dst.Set("stale", []byte("cleared")) // loader must clear the destination
	if err := dst.Restore(&buf); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if dst.Exists("stale") {
		t.Error("Restore did not clear prior contents")
	}
	if got := dst.Len(); got != 102 {
		t.Errorf("restored %d entries, want 102", got)
	}

	v, ok, err := dst.Get("key7")
	if err != nil || !ok || string(v) != "val7" {
		t.Errorf("Get(key7) = %q, %v, %v", v, ok, err)
	}
	v, _, _ = dst.Get("binary")
	if string(v) != "va\x00ue" {
		t.Errorf("binary value damaged: %q", v)
	}

	hv, ok, err := dst.HGet("user", "name")
	if err != nil || !ok || string(hv) != "alice" {
		t.Errorf("HGet(user, name) = %q, %v, %v", hv, ok, err)
	}

	ttl := dst.TTL("key42")
	if ttl < 3599 || ttl > 3600 {
		t.Errorf("TTL(key42) = %d, want ~3600", ttl)
	}
	if dst.TTL("key41") != -1 {
		t.Errorf("TTL(key41) = %d, want -1", dst.TTL("key41"))
	}
}

func TestSnapshotDropsExpired(t *testing.T) {
	src := NewDatabase(100)

	src.Set("live", []byte("v"))
	src.Set("dead", []byte("v"))
	src.mu.Lock()
	src.expires["dead"] = time.Now().Unix() - 10
	src.mu.Unlock()

	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	dst := NewDatabase(100)
	if err := dst.Restore(&buf); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	if dst.Exists("dead") {
		t.Error("entry with past expiry survived the load")
	}
	if !dst.Exists("live") {
		t.Error("live entry was dropped")
	}
}

func TestSnapshotEmpty(t *testing.T) {
	src := NewDatabase(100)

	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	dst := NewDatabase(100)
	dst.Set("stale", []byte("v"))
	if err := dst.Restore(&buf); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if dst.Len() != 0 {
		t.Errorf("Len = %d, want 0", dst.Len())
	}
}

func TestRestoreTruncated(t *testing.T) {
	src := NewDatabase(100)
	src.Set("key", []byte("value"))

	var buf bytes.Buffer
	if err := src.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	cut := buf.Bytes()[:buf.Len()-4]
	dst := NewDatabase(100)
	if err := dst.Restore(bytes.NewReader(cut)); err == nil {
		t.Error("Restore of a truncated stream succeeded")
	}
}
