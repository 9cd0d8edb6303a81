package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestStreamRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat(`[["is_click",0],["hour",13],["price",1500.5]]`+"\n", 200))

	algorithms := []Algorithm{None, Gzip, Zstd, LZ4, Snappy, S2, Deflate}
	levels := []Level{Fastest, Default, Best}

	for _, alg := range algorithms {
		for _, level := range levels {
			t.Run(fmt.Sprintf("%s/%d", alg, level), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, alg, level)
				if err != nil {
					t.Fatalf("Failed to create %s writer: %v", alg, err)
				}
				if _, err := w.Write(original); err != nil {
					t.Fatalf("Failed to write: %v", err)
				}
				if err := w.Close(); err != nil {
					t.Fatalf("Failed to close writer: %v", err)
				}

				r, err := NewReader(bytes.NewReader(buf.Bytes()), alg)
				if err != nil {
					t.Fatalf("Failed to create %s reader: %v", alg, err)
				}
				decompressed, err := io.ReadAll(r)
				if err != nil {
					t.Fatalf("Failed to read: %v", err)
				}
				if err := r.Close(); err != nil {
					t.Fatalf("Failed to close reader: %v", err)
				}

				if !bytes.Equal(original, decompressed) {
					t.Errorf("Decompressed data doesn't match original for %s", alg)
				}
				if alg != None && buf.Len() >= len(original) {
					t.Logf("Warning: %s output (%d) is not smaller than input (%d)", alg, buf.Len(), len(original))
				}
			})
		}
	}
}

func TestDetect(t *testing.T) {
	cases := map[string]Algorithm{
		"train.jsonl.gz":  Gzip,
		"train.jsonl.GZ":  Gzip,
		"train.jsonl.zst": Zstd,
		"train.jsonl.lz4": LZ4,
		"train.jsonl.sz":  Snappy,
		"train.jsonl.s2":  S2,
		"train.jsonl":     None,
		"model.json":      None,
	}
	for path, want := range cases {
		if got := Detect(path); got != want {
			t.Errorf("Detect(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	if _, ok, err := Parse(""); ok || err != nil {
		t.Fatalf("empty name should mean auto detection, got ok=%v err=%v", ok, err)
	}
	if alg, ok, err := Parse("ZSTD"); !ok || err != nil || alg != Zstd {
		t.Fatalf("Parse(ZSTD) = %s, %v, %v", alg, ok, err)
	}
	if _, _, err := Parse("brotli"); err == nil {
		t.Fatal("expected an error for an unsupported algorithm")
	}
}

func TestTruncatedGzipFails(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Gzip, Default)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(strings.Repeat("abcdefgh", 4096)))
	_ = w.Close()

	truncated := buf.Bytes()[:buf.Len()/2]
	r, err := NewReader(bytes.NewReader(truncated), Gzip)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(r); err == nil {
		t.Fatal("expected an error reading a truncated gzip stream")
	}
}
