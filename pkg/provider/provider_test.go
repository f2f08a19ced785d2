package provider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirProviderReadsClassfile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "com", "example")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xCA, 0xFE, 0xBA, 0xBE}
	if err := os.WriteFile(filepath.Join(sub, "Foo.class"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewDirProvider(dir)
	got, ok, err := p.BytesFor("com/example/Foo")
	if err != nil {
		t.Fatalf("BytesFor error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if string(got) != string(want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestDirProviderMiss(t *testing.T) {
	p := NewDirProvider(t.TempDir())
	_, ok, err := p.BytesFor("does/not/Exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing class")
	}
}

func TestChainProviderFallsThrough(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	if err := os.WriteFile(filepath.Join(dirB, "Only.class"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	chain := NewChainProvider(NewDirProvider(dirA).BytesFor, NewDirProvider(dirB).BytesFor)
	data, ok, err := chain.BytesFor("Only")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected chain to find class in second provider")
	}
	if len(data) != 3 {
		t.Fatalf("got %d bytes, want 3", len(data))
	}
}

func TestMmapJmodProviderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "java.base.jmod")

	bodyA := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x01}
	bodyB := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x02, 0x03}

	var buf []byte
	buf = append(buf, bodyA...)
	buf = append(buf, bodyB...)

	appendEntry := func(name string, start, length int) {
		buf = append(buf, name...)
		buf = append(buf, 0)
		buf = append(buf, byte(start>>24), byte(start>>16), byte(start>>8), byte(start))
		buf = append(buf, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	}
	appendEntry("java/lang/Object", 0, len(bodyA))
	appendEntry("java/lang/String", len(bodyA), len(bodyB))
	buf = append(buf, 0) // terminator: empty name

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := OpenMmapJmod(path)
	if err != nil {
		t.Fatalf("OpenMmapJmod: %v", err)
	}
	defer p.Close()

	got, ok, err := p.BytesFor("java/lang/String")
	if err != nil {
		t.Fatalf("BytesFor error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if string(got) != string(bodyB) {
		t.Fatalf("got %x want %x", got, bodyB)
	}

	_, ok, err = p.BytesFor("not/There")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unindexed class")
	}
}
