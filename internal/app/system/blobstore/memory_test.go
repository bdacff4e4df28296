package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, "a/b.txt", strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !m.Exists(ctx, "a/b.txt") {
		t.Fatal("Exists() = false after Put")
	}

	rc, err := m.Get(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("Get() = %q, want %q", data, "hello")
	}

	if err := m.Delete(ctx, "a/b.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if m.Exists(ctx, "a/b.txt") {
		t.Error("Exists() = true after Delete")
	}
	if _, err := m.Get(ctx, "a/b.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemory_DeleteAbsentIsNoop(t *testing.T) {
	m := NewMemory()
	if err := m.Delete(context.Background(), "missing"); err != nil {
		t.Errorf("Delete() of absent key error = %v", err)
	}
}

func TestMemory_Faults(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.FailPuts(true)
	err := m.Put(ctx, "k", strings.NewReader("x"), 1, "")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Put() with FailPuts error = %v, want ErrStorage", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after failed put, want 0", m.Len())
	}
	m.FailPuts(false)

	if err := m.Put(ctx, "k", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	m.FailDeletes(true)
	if err := m.Delete(ctx, "k"); !errors.Is(err, ErrStorage) {
		t.Errorf("Delete() with FailDeletes error = %v, want ErrStorage", err)
	}
	if !m.Exists(ctx, "k") {
		t.Error("blob should survive a failed delete")
	}

	m.Unreachable(true)
	if m.Exists(ctx, "k") {
		t.Error("Exists() should report false when unreachable")
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrStorage) {
		t.Errorf("Get() when unreachable error = %v, want ErrStorage", err)
	}
}

func TestInstrument_PassesThrough(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := Instrument(m, "memory")

	if err := s.Put(ctx, "k", strings.NewReader("abc"), 3, ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !s.Exists(ctx, "k") {
		t.Error("Exists() = false, want true")
	}
	if s.Exists(ctx, "nope") {
		t.Error("Exists() = true for absent key")
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	wrapped := Instrument(m, "memory")

	if err := Ping(ctx, wrapped); err != nil {
		t.Errorf("Ping() = %v, want nil", err)
	}
	m.Unreachable(true)
	if err := Ping(ctx, wrapped); !errors.Is(err, ErrStorage) {
		t.Errorf("Ping() unreachable = %v, want ErrStorage", err)
	}
}
